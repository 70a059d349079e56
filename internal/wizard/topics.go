package wizard

import "sort"

// Topics maps each selectable inquiry topic to its problem statement. The
// statement is folded into the stage prompts so the tutor knows the
// phenomenon under investigation.
var Topics = map[string]string{
	"climbing magnet":       "Attach a rod assembled from cylindrical neodymium magnets horizontally to a vertical ferromagnetic rod. Limit the motion of the magnets to the vertical direction. When the ferromagnetic rod is spun around its axis of symmetry, the magnetic rod begins to climb up. Explain this phenomenon and investigate how the rate of climbing depends on relevant parameters.",
	"Spaghetti accelerator": "When a piece of spaghetti is pushed into a bent tube, small debris of spaghetti may be ejected from the other end of the tube at a surprisingly high speed. Investigate this phenomenon.",
	"Rigid ramp walker":     "Construct a rigid ramp walker with four legs (e.g. in the form of a ladder). The construction may begin to ‘walk’ down a rough ramp. Investigate how the geometry of the walker and relevant parameters affect its terminal velocity of walking.",
	"Rebounding capsule":    "A spherical ball dropped onto a hard surface will never rebound to the release height, even if it has an initial spin. A capsule-shaped object (i.e. Tic Tac mint) on the other hand may exceed the initial height. Investigate this phenomenon.",
	"Sweet mirage":          "Fata Morgana is the name given to a particular form of mirage. A similar effect can be produced by shining a laser through a fluid with a refractive index gradient. Investigate the phenomenon.",
	"Falling tower":         "Identical discs are stacked one on top of another to form a freestanding tower. The bottom disc can be removed by applying a sudden horizontal force such that the rest of the tower will drop down onto the surface and the tower remains standing. Investigate the phenomenon and determine the conditions that allow the tower to remain standing.",
	"Pepper pot":            "If you take a salt or pepper pot and just shake it, the contents will pour out relatively slowly. However, if an object is rubbed along the bottom of the pot, then the rate of pouring can increase dramatically. Explain this phenomenon and investigate how the rate depends on the relevant parameters.",
	"Leidenfrost stars":     "In the Leidenfrost effect, a water drop placed on a hot surface can survive for minutes. Under certain circumstances, such a drop develops oscillating star shapes. Induce different oscillatory modes and investigate them.",
}

// TopicNames returns the topic names in stable alphabetical order for the
// selection list.
func TopicNames() []string {
	names := make([]string, 0, len(Topics))
	for name := range Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
