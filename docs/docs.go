// Package docs registers the swagger document served under /swagger.
// Regenerate with: swag init -g cmd/sharevault/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "yeisme"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/license/mit/"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/health": {"get": {"tags": ["health"], "summary": "Health", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/plans": {"get": {"tags": ["quota"], "summary": "Plan catalog", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/quota": {"get": {"tags": ["quota"], "summary": "Quota usage", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/shares": {
            "get": {"tags": ["shares"], "summary": "List shares", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["shares"], "summary": "Create share", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/shares/{shareId}": {
            "get": {"tags": ["shares"], "summary": "Share detail", "parameters": [{"type": "string", "name": "shareId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["shares"], "summary": "Delete share", "parameters": [{"type": "string", "name": "shareId", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/api/v1/shares/{shareId}/settings": {"patch": {"tags": ["shares"], "summary": "Update share settings", "parameters": [{"type": "string", "name": "shareId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/shares/{shareId}/upload-intents": {"post": {"tags": ["transfer"], "summary": "Create upload intent", "parameters": [{"type": "string", "name": "shareId", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}}}},
        "/api/v1/shares/{shareId}/download-links": {"post": {"tags": ["shares"], "summary": "Create download link", "parameters": [{"type": "string", "name": "shareId", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}}}},
        "/api/v1/upload-intents/{signatureId}": {"get": {"tags": ["transfer"], "summary": "Upload intent state", "parameters": [{"type": "string", "name": "signatureId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/files/{fileId}": {"delete": {"tags": ["files"], "summary": "Delete file", "parameters": [{"type": "string", "name": "fileId", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}},
        "/api/v1/admin/users": {"post": {"tags": ["admin"], "summary": "Upsert user", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/admin/users/{userId}/plan": {"put": {"tags": ["admin"], "summary": "Assign plan", "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/admin/plans": {"post": {"tags": ["admin"], "summary": "Upsert plan", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/admin/sweep": {"post": {"tags": ["admin"], "summary": "Run sweep", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/scheduler/jobs": {"get": {"tags": ["scheduler"], "summary": "Scheduled jobs", "responses": {"200": {"description": "OK"}}}},
        "/u/{signature}": {"post": {"tags": ["capability"], "summary": "Upload files", "consumes": ["multipart/form-data"], "parameters": [{"type": "string", "name": "signature", "in": "path", "required": true}, {"type": "file", "name": "file", "in": "formData", "required": true}], "responses": {"201": {"description": "Created"}, "404": {"description": "Not Found"}, "410": {"description": "Gone"}, "413": {"description": "Too Large"}}}},
        "/d/{signature}": {"get": {"tags": ["capability"], "summary": "Download", "parameters": [{"type": "string", "name": "signature", "in": "path", "required": true}, {"type": "string", "name": "file", "in": "query"}, {"type": "string", "name": "password", "in": "query"}], "responses": {"200": {"description": "OK"}, "401": {"description": "Password required"}, "403": {"description": "Forbidden"}, "410": {"description": "Gone"}}}},
        "/s/{slug}": {"get": {"tags": ["capability"], "summary": "Visit share", "parameters": [{"type": "string", "name": "slug", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ShareVault API",
	Description:      "Quota-bounded file sharing with single-use upload and download signatures.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
