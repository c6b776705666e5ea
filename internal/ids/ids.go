package ids

import "github.com/segmentio/ksuid"

// New returns a sortable unique id for principals and token jtis.
func New() string {
	return ksuid.New().String()
}
