package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"afterme/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. The
// auth middleware guards everything under /documents; health, metrics
// and docs stay open.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, shareSvc service.SharingService, reportSvc service.ReportService, auth fiber.Handler) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents", auth)

	// Fixed paths first so they don't get captured by /:id.
	docs.Get("/recent", RecentDocuments(docSvc))
	docs.Get("/search", SearchDocuments(docSvc))
	docs.Get("/export", ExportDocuments(docSvc))
	docs.Get("/shared/with-me", SharedWithMe(shareSvc))
	docs.Get("/counts/summary", CountsSummary(reportSvc))
	docs.Get("/folders/stats", FolderStats(reportSvc))
	docs.Get("/tags", TagFrequencyReport(reportSvc))
	docs.Post("/bulk-delete", BulkDeleteDocuments(docSvc))

	docs.Post("/", UploadDocument(docSvc))
	docs.Get("/", ListDocuments(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Put("/:id", UpdateDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
	docs.Post("/:id/restore", RestoreDocument(docSvc))
	docs.Post("/:id/files", AddDocumentFiles(docSvc))
	docs.Delete("/:id/files/:fileId", RemoveDocumentFile(docSvc))
	docs.Get("/:id/files/:fileId/url", DocumentFileURL(docSvc))
	docs.Get("/:id/versions", DocumentVersions(docSvc))
	docs.Post("/:id/share", ShareDocument(shareSvc))
}
