package scene

// Brand is shown on the end card and as the watermark.
const Brand = "Lunabell"

// Copy is the text overlaid on a scene.
type Copy struct {
	Headline string `json:"headline,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
}

var copies = map[Scene]Copy{
	Beach: {Headline: "Luxury or nothing."},
	End:   {Headline: Brand},
}

// CopyFor returns the overlay text for s. City and Product carry none.
func CopyFor(s Scene) Copy {
	return copies[s]
}
