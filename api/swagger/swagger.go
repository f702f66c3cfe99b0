package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Practicas API",
        "description": "Internship and social service documentation portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and session management"},
        {"name": "Periods", "description": "Academic period administration"},
        {"name": "Templates", "description": "Document templates and their availability"},
        {"name": "Processes", "description": "Student process registry"},
        {"name": "Documents", "description": "Document submission and review workflow"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Token expired or revoked"}
                }
            }
        },
        "/periods": {
            "get": {
                "tags": ["Periods"],
                "summary": "List academic periods",
                "responses": {
                    "200": {"description": "Period list"}
                }
            },
            "post": {
                "tags": ["Periods"],
                "summary": "Create a period",
                "responses": {
                    "201": {"description": "Period created"},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/periods/current": {
            "get": {
                "tags": ["Periods"],
                "summary": "Get the reference period",
                "responses": {
                    "200": {"description": "Reference period"},
                    "404": {"description": "No periods registered"}
                }
            }
        },
        "/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List document templates",
                "responses": {
                    "200": {"description": "Template list"}
                }
            }
        },
        "/templates/{name}/status": {
            "put": {
                "tags": ["Templates"],
                "summary": "Toggle template availability",
                "responses": {
                    "200": {"description": "Status updated"},
                    "404": {"description": "Template not found"}
                }
            }
        },
        "/processes": {
            "get": {
                "tags": ["Processes"],
                "summary": "List the caller's processes",
                "responses": {
                    "200": {"description": "Process list"}
                }
            },
            "post": {
                "tags": ["Processes"],
                "summary": "Register a process",
                "responses": {
                    "201": {"description": "Process created"},
                    "409": {"description": "Period not accepting registrations"}
                }
            }
        },
        "/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Submit a document",
                "responses": {
                    "201": {"description": "Document submitted"},
                    "409": {"description": "Template blocked"}
                }
            }
        },
        "/documents/{id}/approve": {
            "put": {
                "tags": ["Documents"],
                "summary": "Approve a document",
                "responses": {
                    "200": {"description": "Document approved"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/documents/{id}/reject": {
            "put": {
                "tags": ["Documents"],
                "summary": "Reject a document with comments",
                "responses": {
                    "200": {"description": "Document rejected"},
                    "400": {"description": "Comments required"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
