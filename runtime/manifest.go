package runtime

import (
	"time"

	"github.com/Jeffail/gabs/v2"
)

// ManifestRoute serves the plugin manifest when debug is enabled.
const ManifestRoute = "/_gantry/plugins"

// BuildManifest renders the registered task list as a nested JSON document:
// plugins grouped globally and by prefix, middleware grouped globally and
// by route, annotated with the generation that loaded them.
func BuildManifest(generation string, loadedAt time.Time, tasks []PluginTask) *gabs.Container {
	doc := gabs.New()
	doc.Set(generation, "generation")
	doc.Set(loadedAt.UTC().Format(time.RFC3339), "loaded_at")
	doc.Set(len(tasks), "count")

	// Keep the group containers present even when empty so consumers can
	// index without existence checks.
	doc.Array("plugins", "global")
	doc.Object("plugins", "prefixed")
	doc.Array("middleware", "global")
	doc.Object("middleware", "routes")

	for i := range tasks {
		t := &tasks[i]
		entry := map[string]any{
			"name":  t.Name,
			"file":  t.FilePath,
			"order": t.Order,
			"kind":  t.Kind.String(),
		}

		switch {
		case t.IsMiddleware && t.Route != "":
			doc.ArrayAppend(entry, "middleware", "routes", t.Route)
		case t.IsMiddleware:
			doc.ArrayAppend(entry, "middleware", "global")
		case t.Prefix != "":
			doc.ArrayAppend(entry, "plugins", "prefixed", t.Prefix)
		default:
			doc.ArrayAppend(entry, "plugins", "global")
		}
	}

	return doc
}

// SetManifest installs the manifest document served on ManifestRoute.
// Called once per load pass, before the server starts taking traffic.
func (s *Server) SetManifest(doc *gabs.Container) {
	s.manifest = doc.Bytes()
}
