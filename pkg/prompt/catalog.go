package prompt

import "strings"

// Placeholder tokens used in action templates.
const (
	PlaceholderObject   = "OBJ"
	PlaceholderLocation = "LOC"
)

// ActionTemplate is one entry of the static action catalog.
type ActionTemplate struct {
	Template string `json:"action" yaml:"action"`
	Effect   string `json:"description" yaml:"description"`
}

var actionCatalog = []ActionTemplate{
	{"open OBJ", "open a container"},
	{"close OBJ", "close a container"},
	{"activate OBJ", "activate a device"},
	{"deactivate OBJ", "deactivate a device"},
	{"connect OBJ to OBJ", "connect electrical components"},
	{"disconnect OBJ", "disconnect electrical components"},
	{"use OBJ [on OBJ]", "use a device/item"},
	{"look around", "describe the current room"},
	{"examine OBJ", "describe an object in detail"},
	{"look at OBJ", "describe a container's contents"},
	{"read OBJ", "read a note or book"},
	{"move OBJ to OBJ", "move an object to a container"},
	{"pick up OBJ", "move an object to the inventory"},
	{"put down OBJ", "drop an inventory item"},
	{"pour OBJ into OBJ", "pour a liquid into a container"},
	{"dunk OBJ into OBJ", "dunk a container into a liquid"},
	{"mix OBJ", "chemically mix a container"},
	{"go to LOC", "move to a new location"},
	{"teleport to LOC", "teleport to a specific room"},
	{"eat OBJ", "eat a food"},
	{"flush OBJ", "flush a toilet"},
	{"focus on OBJ", "signal intent on a task object"},
	{"wait", "take no action for 10 iterations"},
	{"wait1", "take no action for 1 iteration"},
	{"task", "describe current task"},
	{"inventory", "list your inventory"},
}

// Catalog returns a copy of the static action catalog. With generic set,
// location placeholders are collapsed into the object placeholder.
func Catalog(generic bool) []ActionTemplate {
	out := make([]ActionTemplate, len(actionCatalog))
	copy(out, actionCatalog)
	if generic {
		for i := range out {
			out[i].Template = strings.ReplaceAll(out[i].Template, PlaceholderLocation, PlaceholderObject)
		}
	}
	return out
}

// choiceCatalog turns engine-reported action templates into catalog entries
// without descriptions.
func choiceCatalog(actions []string) []ActionTemplate {
	out := make([]ActionTemplate, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionTemplate{Template: a})
	}
	return out
}
