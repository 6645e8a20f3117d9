package ports

import (
	"context"

	"github.com/reglet-dev/lv2host/domain/entities"
)

// BundleParser reads one metadata document into statements.
type BundleParser interface {
	// Parse reads the document at fileURI, resolving relative IRIs against
	// it. Blank node identifiers in the result are unique to this call.
	Parse(ctx context.Context, fileURI string) ([]entities.Triple, error)
}
