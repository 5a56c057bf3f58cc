package models

import "image"

// Artifact file names written for every confirmed image.
const (
	PredictedMaskFile          = "predicted_mask.png"
	OverlaidImageFile          = "overlaid_image.png"
	InvertedMaskFile           = "inverted_mask.png"
	PredictedProbabilitiesFile = "predicted_probabilities.png"
	InvertedProbabilitiesFile  = "inverted_probabilities.png"
)

// ArtifactSet is the terminal output of a confirmed review.
type ArtifactSet struct {
	PredictedMask          *image.Gray
	OverlaidImage          *image.RGBA
	InvertedMask           *image.Gray
	PredictedProbabilities *image.Gray
	InvertedProbabilities  *image.Gray
}

// NamedArtifact pairs an artifact image with its fixed file name.
type NamedArtifact struct {
	Name  string
	Image image.Image
}

// Files lists the artifacts in write order.
func (a ArtifactSet) Files() []NamedArtifact {
	return []NamedArtifact{
		{Name: PredictedMaskFile, Image: a.PredictedMask},
		{Name: OverlaidImageFile, Image: a.OverlaidImage},
		{Name: InvertedMaskFile, Image: a.InvertedMask},
		{Name: PredictedProbabilitiesFile, Image: a.PredictedProbabilities},
		{Name: InvertedProbabilitiesFile, Image: a.InvertedProbabilities},
	}
}

// Complete reports whether every artifact is present.
func (a ArtifactSet) Complete() bool {
	return a.PredictedMask != nil && a.OverlaidImage != nil && a.InvertedMask != nil &&
		a.PredictedProbabilities != nil && a.InvertedProbabilities != nil
}
