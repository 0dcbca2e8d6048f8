// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "description": "Exchanges operator credentials from auth.users for a bearer token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [{"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {
                    "200": {"description": "token", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Active alarms, indicator channel modes, mute switch and ingest queue depth.",
                "produces": ["application/json"],
                "tags": ["alarms"],
                "summary": "Gateway status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.GatewayStatus"}},
                    "401": {"description": "Unauthorized"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/api/v1/alarms": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["alarms"],
                "summary": "Active alarms",
                "responses": {"200": {"description": "count, alarms"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/v1/alarms/reset": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Clears active alarms without a resumption trap and turns off indicator channels they held. The body is optional.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alarms"],
                "summary": "Reset active alarms",
                "parameters": [{"description": "Source filter", "name": "body", "in": "body", "required": false, "schema": {"$ref": "#/definitions/handlers.ResetAlarmsRequest"}}],
                "responses": {"200": {"description": "count, cleared"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "409": {"description": "Conflict"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/api/v1/traps": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Queues a notification through the same pipeline as received SNMP traps.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alarms"],
                "summary": "Inject a trap",
                "parameters": [{"description": "Notification", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitTrapRequest"}}],
                "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad Request"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/api/v1/audible": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["audible"],
                "summary": "Audible mute state",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/audible/mute": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["audible"],
                "summary": "Mute or unmute the audible output",
                "parameters": [{"description": "Mute switch", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.MuteRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Newest first. Dates accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' is end of day inclusive.",
                "produces": ["application/json"],
                "tags": ["journal"],
                "summary": "List journaled events",
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range", "name": "to", "in": "query"},
                    {"enum": ["critical", "warning", "info"], "type": "string", "description": "Severity", "name": "severity", "in": "query"},
                    {"enum": ["trigger", "resumption", "state"], "type": "string", "description": "Role", "name": "role", "in": "query"},
                    {"type": "string", "description": "Source address", "name": "source", "in": "query"},
                    {"type": "integer", "description": "Maximum rows (default 500)", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/v1/events/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Same filters as /api/v1/events, returned as an xlsx workbook.",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["journal"],
                "summary": "Export journaled events",
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/api/v1/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["journal"],
                "summary": "Recent notification deliveries",
                "parameters": [{"type": "integer", "description": "Maximum rows (default 500)", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "count, notifications"}}
            }
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.SubmitTrapRequest": {
            "type": "object",
            "required": ["code", "source"],
            "properties": {
                "code": {"type": "string", "example": "1.3.6.1.4.1.37662.1.2.2.1.2.2"},
                "payload": {"type": "object", "additionalProperties": {"type": "string"}},
                "source": {"type": "string", "example": "192.168.111.137"}
            }
        },
        "handlers.ResetAlarmsRequest": {
            "type": "object",
            "properties": {
                "source": {"type": "string", "example": "192.168.111.137"}
            }
        },
        "handlers.MuteRequest": {
            "type": "object",
            "required": ["muted"],
            "properties": {"muted": {"type": "boolean", "example": true}}
        },
        "models.GatewayStatus": {
            "type": "object",
            "properties": {
                "active_alarms": {"type": "array", "items": {"type": "object"}},
                "generated_at": {"type": "string"},
                "indicators": {"type": "object", "additionalProperties": {"type": "string"}},
                "muted": {"type": "boolean"},
                "queue_depth": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "UPS Trap Gateway API",
	Description:      "Alarm status, journal and mute control for the UPS/ATS SNMP trap gateway.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
