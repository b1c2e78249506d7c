package cache

import (
	"fmt"

	"github.com/epguides-io/epguides-api/models"
)

// Cache keys are built from the entity kind and the normalized show key, so
// "BreakingBad" and "breaking bad" address the same entry.

func ShowKey(key string) string {
	return fmt.Sprintf("show:%v", models.NormalizeKey(key))
}

func EpisodesKey(key string) string {
	return fmt.Sprintf("episodes:%v", models.NormalizeKey(key))
}

func CatalogKey() string {
	return "catalog:index"
}
