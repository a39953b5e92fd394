package repository

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

var pointNamespace = uuid.MustParse("6f1c4c1e-2f0b-4b7e-9a51-0d9c2f6a3e10")

// PointID derives a stable id from the url and title so re-indexing the same
// paper overwrites its previous point instead of colliding with another one.
func PointID(doc Document) string {
	hash := sha256.Sum256([]byte(doc.URL + "\n" + doc.Title))
	return uuid.NewSHA1(pointNamespace, hash[:16]).String()
}

// NewIndexedPoint pairs a document with its embedding.
func NewIndexedPoint(doc Document, vector []float32) IndexedPoint {
	return IndexedPoint{
		ID:       PointID(doc),
		Vector:   vector,
		Document: doc,
	}
}
