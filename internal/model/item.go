package model

// ItemID identifies an entry of the item catalog
type ItemID string

// Supported display languages, as BCP 47 tags
const (
	LanguageEnglish        = "en"
	LanguageFrench         = "fr"
	LanguageSpanishMexican = "es-MX"
)

// Item is an immutable estimable subject
type Item struct {
	ID        ItemID
	Names     map[string]string // language tag -> name
	Adjective map[string]string // language tag -> adjective
	ImageURL  string
	BasePrice float64
}

// ItemDisplay is an item resolved for one language
type ItemDisplay struct {
	ID        ItemID
	Language  string
	Name      string
	Adjective string
	ImageURL  string
	BasePrice float64
}
