package rulegraph

import (
	"strings"

	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

func rulesProduct(t value.TypeID) rules.Product {
	return rules.ProductOf(t)
}

func trimPackage(s string) string {
	return strings.TrimPrefix(s, "rulegraph.")
}
