package prompting

// AddressExtractionPrompt returns the instruction sent with a route photo.
// The model must answer with a bare JSON array of address strings.
func AddressExtractionPrompt() string {
	return `Extract all delivery addresses from this image. Return only a JSON array of address strings, no other text. Each address should be a complete street address including street number, street name, city, state/province, and postal code when visible. If no addresses are found, return an empty array.`
}
