package create

import (
	"strings"

	"github.com/deploymenttheory/go-efidisk/pkg/app"
)

// Validate validates a creation request
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ImagePath) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}
	if strings.HasSuffix(r.ImagePath, "/") {
		return app.NewError(app.ErrCodeInvalidInput, "image path names a directory", nil)
	}

	// Sizes are parsed and checked against each other here so a bad layout
	// never creates or truncates the target.
	if _, err := r.Layout.Config(); err != nil {
		return err
	}
	return nil
}
