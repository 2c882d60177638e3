// Package docs contains the generated swagger documentation.
// Run `swag init -g internal/server/server.go -o internal/server/docs` to regenerate.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CDR Intelligence API",
        "description": "Ingestion, forensic analytics, export and geofence alerts over call detail records.",
        "version": "1.0"
    },
    "host": "localhost:8790",
    "basePath": "/v1",
    "paths": {
        "/health": {
            "get": {
                "description": "Returns server status, version, uptime and store totals. Open without a token.",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.HealthResponse"}}
                }
            }
        },
        "/ingest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Ingest a CDR file",
                "parameters": [
                    {"type": "file", "description": "CSV, Excel or JSON file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Suspect the records belong to", "name": "suspect_name", "in": "formData"},
                    {"type": "string", "description": "Session id to use", "name": "session_id", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ingest.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List sessions",
                "parameters": [
                    {"type": "string", "description": "Only sessions of this suspect", "name": "suspect_name", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.SessionsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cdr.Session"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/analytics/{view}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["analytics"],
                "summary": "Run an analyzer",
                "parameters": [
                    {"type": "string", "description": "network, heatmap, imei, movement, colocation, anomalies, summary, overview, report, international, sms-services, common-numbers, common-towers or common-imei", "name": "view", "in": "path", "required": true},
                    {"type": "string", "description": "Session id", "name": "session_id", "in": "query"},
                    {"type": "string", "description": "Suspect name", "name": "suspect_name", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "Suspect names for the cross-suspect views", "name": "suspects", "in": "query"},
                    {"type": "string", "description": "Heatmap filter", "name": "call_type", "in": "query"},
                    {"type": "string", "description": "Movement grouping", "name": "layer", "in": "query"},
                    {"type": "integer", "description": "Co-location window in minutes", "name": "window", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Renders the scope as csv, json, xlsx or a gzip report bundle.",
                "produces": ["application/octet-stream"],
                "tags": ["export"],
                "summary": "Export records",
                "parameters": [
                    {"type": "string", "description": "csv, json, xlsx or bundle", "name": "format", "in": "query", "required": true},
                    {"type": "string", "description": "Session id", "name": "session_id", "in": "query"},
                    {"type": "string", "description": "Suspect name", "name": "suspect_name", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/geofences": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["geofences"],
                "summary": "List geofences",
                "parameters": [
                    {"type": "string", "description": "Only fences of this suspect", "name": "suspect_name", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.GeofencesResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["geofences"],
                "summary": "Create a geofence",
                "parameters": [
                    {"description": "Polygon and owner", "name": "fence", "in": "body", "required": true, "schema": {"$ref": "#/definitions/geofence.Geofence"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/geofence.Geofence"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/geofences/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["geofences"],
                "summary": "Delete a geofence",
                "parameters": [
                    {"type": "string", "description": "Geofence id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/ws/ticket": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["alerts"],
                "summary": "Issue an alert socket ticket",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.TicketResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/devices/{imei}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["devices"],
                "summary": "Decode an IMEI",
                "parameters": [
                    {"type": "string", "description": "15 digit IMEI", "name": "imei", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/lookup.Device"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "cdr.Session": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "suspect_name": {"type": "string"},
                "source_file": {"type": "string"},
                "file_hash": {"type": "string"},
                "vendor": {"type": "string"},
                "records_inserted": {"type": "integer"},
                "validation": {"$ref": "#/definitions/cdr.ValidationStats"},
                "ingested_at": {"type": "string", "format": "date-time"},
                "workstation_id": {"type": "string"}
            }
        },
        "cdr.ValidationStats": {
            "type": "object",
            "properties": {
                "missing_msisdn": {"type": "integer"},
                "missing_time": {"type": "integer"},
                "other": {"type": "integer"}
            }
        },
        "geofence.Geofence": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "geometry": {
                    "type": "object",
                    "properties": {
                        "type": {"type": "string"},
                        "coordinates": {
                            "type": "array",
                            "items": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}
                        }
                    }
                },
                "suspect_name": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "ingest.Result": {
            "type": "object",
            "properties": {
                "records_inserted": {"type": "integer"},
                "session_id": {"type": "string"},
                "suspect_name": {"type": "string"},
                "format_detected": {"type": "object"},
                "validation": {"$ref": "#/definitions/cdr.ValidationStats"},
                "header_row": {"type": "integer"},
                "rows_discarded": {"type": "integer"},
                "subject_number": {"type": "string"},
                "file_hash": {"type": "string"},
                "geofence_alerts": {"type": "integer"},
                "coordinates_resolved": {"type": "integer"}
            }
        },
        "lookup.Device": {
            "type": "object",
            "properties": {
                "imei": {"type": "string"},
                "tac": {"type": "string"},
                "serial": {"type": "string"},
                "check_digit": {"type": "string"},
                "luhn_valid": {"type": "boolean"},
                "manufacturer": {"type": "string"},
                "model": {"type": "string"},
                "brand": {"type": "string"},
                "source": {"type": "string"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "server.GeofencesResponse": {
            "type": "object",
            "properties": {
                "geofences": {"type": "array", "items": {"$ref": "#/definitions/geofence.Geofence"}}
            }
        },
        "server.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"},
                "uptime_seconds": {"type": "number"},
                "store": {"type": "object"}
            }
        },
        "server.SessionsResponse": {
            "type": "object",
            "properties": {
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/cdr.Session"}}
            }
        },
        "server.TicketResponse": {
            "type": "object",
            "properties": {
                "ticket": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
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
	Host:             "localhost:8790",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "CDR Intelligence API",
	Description:      "Ingestion, forensic analytics, export and geofence alerts over call detail records.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
