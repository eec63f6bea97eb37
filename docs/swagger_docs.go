// Package docs holds the general Swagger information for the portsweep API.
// Endpoint documentation lives on the handlers in internal/api/handlers.
//
//go:generate swag init -g swagger_docs.go -d .,../internal/api/handlers -o ./swagger --parseDependency --parseInternal
package docs

// @title portsweep API
// @version 1.0
// @description Concurrent TCP connect port scanner.
// @description
// @description Scans run in the background: POST a host and port specification to /scans, then poll
// @description the run, stream its results over a WebSocket, or fetch the finished report as text or JSON.
// @description Cancelled scans keep the results gathered so far and are marked partial.
// @description
// @description ## Authentication
// @description When enabled, include an API key in the `X-API-Key` header or as a Bearer token.
// @description Health, liveness and version endpoints do not require authentication.
//
// @contact.name portsweep maintainers
// @contact.url https://github.com/anstrom/portsweep
//
// @license.name MIT
// @license.url https://github.com/anstrom/portsweep/blob/main/LICENSE
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication
