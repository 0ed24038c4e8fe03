package bootstrap

import (
	"github.com/shopspring/decimal"

	"storefront-service/internal/model"
)

type sample struct {
	name         string
	description  string
	price        string
	category     model.Category
	image        string
	stock        int
	customizable bool
	colors       []string
	designs      []string
	keywords     []string
}

var samples = []sample{
	{
		name:         "Vintage Travel Journal",
		description:  "Hand-bound leather journal with 200 unlined pages, perfect for documenting adventures.",
		price:        "2499",
		category:     model.CategoryJournals,
		image:        "/images/vintage-travel-journal.jpg",
		stock:        45,
		customizable: true,
		colors:       []string{"Brown", "Black", "Tan"},
		designs:      []string{"Compass", "World Map", "Plain"},
		keywords:     []string{"leather journal", "travel diary"},
	},
	{
		name:         "Daily Gratitude Journal",
		description:  "Guided prompts for a year of gratitude and reflection.",
		price:        "1499",
		category:     model.CategoryJournals,
		image:        "/images/gratitude-journal.jpg",
		stock:        60,
		customizable: true,
		colors:       []string{"Sage", "Blush", "Cream"},
		designs:      []string{"Floral", "Minimal"},
		keywords:     []string{"gratitude", "mindfulness"},
	},
	{
		name:         "Custom Photo Magazine",
		description:  "Turn your favourite moments into a glossy 40-page magazine.",
		price:        "3299",
		category:     model.CategoryMagazines,
		image:        "/images/photo-magazine.jpg",
		stock:        30,
		customizable: true,
		designs:      []string{"Wedding", "Birthday", "Travel"},
		keywords:     []string{"photo magazine", "personalized gift"},
	},
	{
		name:        "Family Yearbook Magazine",
		description: "A printed yearbook capturing your family's highlights.",
		price:       "3999",
		category:    model.CategoryMagazines,
		image:       "/images/family-yearbook.jpg",
		stock:       15,
		keywords:    []string{"yearbook", "family"},
	},
	{
		name:         "Classic Memory Scrapbook",
		description:  "Acid-free 12x12 album with 40 pages for photos and keepsakes.",
		price:        "2799",
		category:     model.CategoryScrapbooks,
		image:        "/images/memory-scrapbook.jpg",
		stock:        25,
		customizable: true,
		colors:       []string{"Red", "Navy", "Ivory"},
		keywords:     []string{"photo album", "keepsake"},
	},
	{
		name:        "Baby's First Year Scrapbook",
		description: "Milestone pages and pockets for your baby's first twelve months.",
		price:       "2999",
		category:    model.CategoryScrapbooks,
		image:       "/images/baby-scrapbook.jpg",
		stock:       12,
		keywords:    []string{"baby book", "milestones"},
	},
	{
		name:        "Scrapbooking Starter Kit",
		description: "Scissors, adhesive, stickers and patterned paper to start crafting.",
		price:       "1899",
		category:    model.CategoryTools,
		image:       "/images/starter-kit.jpg",
		stock:       80,
		keywords:    []string{"craft supplies", "DIY"},
	},
	{
		name:        "Decorative Washi Tape Set",
		description: "Twenty rolls of patterned washi tape for journals and albums.",
		price:       "899",
		category:    model.CategoryTools,
		image:       "/images/washi-tape.jpg",
		stock:       8,
		keywords:    []string{"washi tape", "stationery"},
	},
}

// SampleProducts returns a fresh copy of the starter catalog
func SampleProducts() []model.Product {
	out := make([]model.Product, 0, len(samples))
	for _, s := range samples {
		out = append(out, model.Product{
			Name:         s.name,
			Slug:         SlugFor(s.name),
			Description:  s.description,
			Price:        decimal.RequireFromString(s.price),
			Category:     s.category,
			Image:        s.image,
			Stock:        s.stock,
			Customizable: s.customizable,
			Colors:       append([]string(nil), s.colors...),
			Designs:      append([]string(nil), s.designs...),
			Keywords:     append([]string(nil), s.keywords...),
		})
	}
	return out
}
