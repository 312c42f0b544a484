package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjectName returns name when it is set, otherwise a generated unique name
// with the given kind as prefix (e.g. "tlas-5f0c...").
func ObjectName(kind, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fmt.Sprintf("%s-%s", kind, uuid.New().String())
}
