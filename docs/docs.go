// Package docs is generated by swag. Regenerate with:
//
//	swag init -g cmd/api/main.go -o docs
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
        "/api/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"description": "Account registration details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/api/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "401": {"description": "Unauthorized"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/api/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.accountResponse"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/records": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json"],
                "tags": ["records"],
                "summary": "Submit a meter reading",
                "parameters": [
                    {"type": "string", "description": "Idempotency key to prevent duplicate submissions", "name": "Idempotency-Key", "in": "header"},
                    {"type": "number", "description": "Current meter reading", "name": "current_reading", "in": "formData", "required": true},
                    {"type": "number", "description": "Previous reading (first record only, default 0)", "name": "previous_reading", "in": "formData"},
                    {"type": "number", "description": "Rate per unit (default configured rate)", "name": "rate_per_unit", "in": "formData"},
                    {"type": "string", "description": "Due date (YYYY-MM-DD)", "name": "due_date", "in": "formData", "required": true},
                    {"type": "string", "description": "Remarks", "name": "remarks", "in": "formData"},
                    {"type": "file", "description": "Bill image (jpeg, png, webp or pdf)", "name": "bill_image", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Idempotent replay", "schema": {"$ref": "#/definitions/handler.recordResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.recordResponse"}},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/api/records/last": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["records"],
                "summary": "Latest record",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.latestRecordResponse"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/records/mine": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["records"],
                "summary": "My records",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/records/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["records"],
                "summary": "Get a record",
                "parameters": [
                    {"type": "string", "description": "Record ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.recordResponse"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/admin/records": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List all records",
                "parameters": [
                    {"enum": ["pending", "paid", "overdue"], "type": "string", "description": "Payment status filter", "name": "status", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/api/admin/records/{id}/payment": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Update payment status",
                "parameters": [
                    {"type": "string", "description": "Record ID", "name": "id", "in": "path", "required": true},
                    {"description": "New status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.paymentStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.recordResponse"}},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/admin/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List accounts",
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/api/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        }
    },
    "definitions": {
        "handler.registerRequest": {
            "type": "object",
            "required": ["address", "email", "meter_number", "name", "password", "phone"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "meter_number": {"type": "string"},
                "address": {"type": "string"},
                "phone": {"type": "string"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.paymentStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["pending", "paid", "overdue"]}
            }
        },
        "handler.accountResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "meter_number": {"type": "string"},
                "address": {"type": "string"},
                "phone": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "account": {"$ref": "#/definitions/handler.accountResponse"}
            }
        },
        "handler.recordLinks": {
            "type": "object",
            "properties": {
                "self": {"type": "string"},
                "bill_image": {"type": "string"}
            }
        },
        "handler.recordResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "account_id": {"type": "string"},
                "meter_number": {"type": "string"},
                "previous_reading": {"type": "number"},
                "current_reading": {"type": "number"},
                "rate_per_unit": {"type": "number"},
                "units_consumed": {"type": "number"},
                "total_amount": {"type": "number"},
                "due_date": {"type": "string"},
                "payment_status": {"type": "string"},
                "payment_date": {"type": "string"},
                "bill_image": {"type": "string"},
                "remarks": {"type": "string"},
                "anomaly": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "_links": {"$ref": "#/definitions/handler.recordLinks"}
            }
        },
        "handler.latestRecordResponse": {
            "type": "object",
            "properties": {
                "record": {"$ref": "#/definitions/handler.recordResponse"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Electricity Records API",
	Description:      "Meter reading submission, billing and payment tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
