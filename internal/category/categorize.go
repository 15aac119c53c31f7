package category

import "strings"

const Other = "Other"

// Categories lists every category Categorize can return, in display order.
var Categories = []string{
	"Tools", "Hardware", "Electronics", "Kitchen", "Cleaning", "Clothing",
	"Sports & Outdoors", "Garden", "Books & Media", "Toys & Games",
	"Office", "Health & Beauty", "Pantry", "Documents", Other,
}

// Categorize returns the inventory category for an item name. Matching is
// case-insensitive: exact names first, then keywords contained in the name.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Other
}

var exactMatch = map[string]string{
	// Tools
	"hammer":       "Tools",
	"drill":        "Tools",
	"saw":          "Tools",
	"wrench":       "Tools",
	"pliers":       "Tools",
	"screwdriver":  "Tools",
	"level":        "Tools",
	"chisel":       "Tools",
	"sander":       "Tools",
	"clamp":        "Tools",
	"clamps":       "Tools",
	"tape measure": "Tools",
	"ladder":       "Tools",

	// Hardware
	"nails":     "Hardware",
	"screws":    "Hardware",
	"bolts":     "Hardware",
	"nuts":      "Hardware",
	"washers":   "Hardware",
	"hinges":    "Hardware",
	"anchors":   "Hardware",
	"zip ties":  "Hardware",
	"duct tape": "Hardware",
	"glue":      "Hardware",

	// Electronics
	"laptop":     "Electronics",
	"tablet":     "Electronics",
	"phone":      "Electronics",
	"charger":    "Electronics",
	"headphones": "Electronics",
	"speaker":    "Electronics",
	"router":     "Electronics",
	"camera":     "Electronics",
	"monitor":    "Electronics",
	"keyboard":   "Electronics",
	"mouse":      "Electronics",
	"batteries":  "Electronics",
	"flashlight": "Electronics",

	// Kitchen
	"blender":  "Kitchen",
	"toaster":  "Kitchen",
	"kettle":   "Kitchen",
	"pan":      "Kitchen",
	"pot":      "Kitchen",
	"skillet":  "Kitchen",
	"spatula":  "Kitchen",
	"whisk":    "Kitchen",
	"colander": "Kitchen",
	"mixer":    "Kitchen",
	"plates":   "Kitchen",
	"bowls":    "Kitchen",
	"mugs":     "Kitchen",
	"apron":    "Kitchen",

	// Cleaning
	"broom":      "Cleaning",
	"mop":        "Cleaning",
	"vacuum":     "Cleaning",
	"bleach":     "Cleaning",
	"sponges":    "Cleaning",
	"detergent":  "Cleaning",
	"trash bags": "Cleaning",

	// Clothing
	"jacket":  "Clothing",
	"coat":    "Clothing",
	"boots":   "Clothing",
	"gloves":  "Clothing",
	"scarf":   "Clothing",
	"hat":     "Clothing",
	"sweater": "Clothing",

	// Sports & Outdoors
	"tent":         "Sports & Outdoors",
	"sleeping bag": "Sports & Outdoors",
	"bike":         "Sports & Outdoors",
	"bicycle":      "Sports & Outdoors",
	"helmet":       "Sports & Outdoors",
	"skis":         "Sports & Outdoors",
	"kayak":        "Sports & Outdoors",
	"cooler":       "Sports & Outdoors",
	"backpack":     "Sports & Outdoors",

	// Garden
	"shovel":      "Garden",
	"rake":        "Garden",
	"hose":        "Garden",
	"trowel":      "Garden",
	"pruners":     "Garden",
	"lawn mower":  "Garden",
	"wheelbarrow": "Garden",
	"fertilizer":  "Garden",

	// Books & Media
	"book":    "Books & Media",
	"books":   "Books & Media",
	"dvd":     "Books & Media",
	"dvds":    "Books & Media",
	"records": "Books & Media",
	"vinyl":   "Books & Media",

	// Toys & Games
	"puzzle": "Toys & Games",
	"lego":   "Toys & Games",
	"doll":   "Toys & Games",
	"cards":  "Toys & Games",

	// Office
	"stapler":   "Office",
	"pens":      "Office",
	"pencils":   "Office",
	"printer":   "Office",
	"paper":     "Office",
	"envelopes": "Office",

	// Health & Beauty
	"shampoo":       "Health & Beauty",
	"toothpaste":    "Health & Beauty",
	"razor":         "Health & Beauty",
	"bandages":      "Health & Beauty",
	"vitamins":      "Health & Beauty",
	"first aid kit": "Health & Beauty",

	// Pantry
	"rice":   "Pantry",
	"pasta":  "Pantry",
	"flour":  "Pantry",
	"sugar":  "Pantry",
	"coffee": "Pantry",
	"tea":    "Pantry",
	"cereal": "Pantry",

	// Documents
	"passport":    "Documents",
	"warranty":    "Documents",
	"manual":      "Documents",
	"tax returns": "Documents",
}

type substringEntry struct {
	keyword  string
	category string
}

// substringMatches is checked in order, so longer phrases come before the
// shorter words they contain.
var substringMatches = []substringEntry{
	// Longer phrases first
	{"power drill", "Tools"},
	{"circular saw", "Tools"},
	{"socket set", "Tools"},
	{"allen key", "Tools"},
	{"extension cord", "Electronics"},
	{"power strip", "Electronics"},
	{"hdmi cable", "Electronics"},
	{"usb cable", "Electronics"},
	{"cast iron", "Kitchen"},
	{"cutting board", "Kitchen"},
	{"garden hose", "Garden"},
	{"flower pot", "Garden"},
	{"board game", "Toys & Games"},
	{"owner's manual", "Documents"},
	{"user manual", "Documents"},
	{"birth certificate", "Documents"},
	{"paper towels", "Cleaning"},
	{"dish soap", "Cleaning"},

	// Single keywords
	{"drill", "Tools"},
	{"saw", "Tools"},
	{"wrench", "Tools"},
	{"screwdriver", "Tools"},
	{"hammer", "Tools"},
	{"screw", "Hardware"},
	{"nail", "Hardware"},
	{"bolt", "Hardware"},
	{"hinge", "Hardware"},
	{"tape", "Hardware"},
	{"cable", "Electronics"},
	{"charger", "Electronics"},
	{"battery", "Electronics"},
	{"batteries", "Electronics"},
	{"lamp", "Electronics"},
	{"bulb", "Electronics"},
	{"knife", "Kitchen"},
	{"pan", "Kitchen"},
	{"pot", "Kitchen"},
	{"cleaner", "Cleaning"},
	{"soap", "Cleaning"},
	{"shirt", "Clothing"},
	{"pants", "Clothing"},
	{"jacket", "Clothing"},
	{"shoes", "Clothing"},
	{"camping", "Sports & Outdoors"},
	{"ball", "Sports & Outdoors"},
	{"fishing", "Sports & Outdoors"},
	{"seeds", "Garden"},
	{"plant", "Garden"},
	{"novel", "Books & Media"},
	{"book", "Books & Media"},
	{"game", "Toys & Games"},
	{"toy", "Toys & Games"},
	{"notebook", "Office"},
	{"pen", "Office"},
	{"ink", "Office"},
	{"medicine", "Health & Beauty"},
	{"lotion", "Health & Beauty"},
	{"canned", "Pantry"},
	{"spice", "Pantry"},
	{"receipt", "Documents"},
	{"certificate", "Documents"},
}
