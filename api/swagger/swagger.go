package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ProcureHub Marketplace API",
        "description": "Opportunity and proposal workflow for the procurement marketplace",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and session"},
        {"name": "Opportunities", "description": "Opportunity lifecycle and versions"},
        {"name": "Proposals", "description": "Proposal drafting, submission, review, and award"},
        {"name": "Exports", "description": "Downloadable reports"},
        {"name": "Admin", "description": "Operator maintenance endpoints"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/opportunities": {
            "get": {
                "tags": ["Opportunities"],
                "summary": "List opportunities",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Opportunities"],
                "summary": "Create opportunity",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOpportunityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/opportunities/{id}": {
            "get": {
                "tags": ["Opportunities"],
                "summary": "Get opportunity detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Opportunities"],
                "summary": "Edit opportunity (appends a new version)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditOpportunityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Opportunities"],
                "summary": "Delete opportunity",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/opportunities/{id}/status": {
            "post": {
                "tags": ["Opportunities"],
                "summary": "Transition opportunity status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/opportunities/{id}/addenda": {
            "post": {
                "tags": ["Opportunities"],
                "summary": "Append an addendum",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/opportunities/{id}/notes": {
            "post": {
                "tags": ["Opportunities"],
                "summary": "Record an internal note",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/opportunities/{id}/watch": {
            "post": {
                "tags": ["Opportunities"],
                "summary": "Subscribe to opportunity updates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Subscribed"}
                }
            },
            "delete": {
                "tags": ["Opportunities"],
                "summary": "Unsubscribe from opportunity updates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Unsubscribed"}
                }
            }
        },
        "/opportunities/{id}/award-summary": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download the award summary",
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered report"}
                }
            }
        },
        "/proposals": {
            "get": {
                "tags": ["Proposals"],
                "summary": "List proposals visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "opportunityId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Proposals"],
                "summary": "Open a draft proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate proposal"},
                    "422": {"description": "Deadline passed"}
                }
            }
        },
        "/proposals/{id}": {
            "get": {
                "tags": ["Proposals"],
                "summary": "Get proposal detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Proposals"],
                "summary": "Replace draft proposal content",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal no longer editable"}
                }
            },
            "delete": {
                "tags": ["Proposals"],
                "summary": "Delete proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/proposals/{id}/status": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Transition proposal status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"},
                    "422": {"description": "Deadline passed"}
                }
            }
        },
        "/proposals/{id}/award": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Award the proposal and settle its siblings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition"}
                }
            }
        },
        "/proposals/{id}/score": {
            "post": {
                "tags": ["Proposals"],
                "summary": "Record an evaluation score",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/opportunities/close-lapsed": {
            "post": {
                "tags": ["Admin"],
                "summary": "Close opportunities whose proposal deadline has passed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Close run report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Aggregated runtime metrics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateOpportunityRequest": {
            "type": "object",
            "required": ["title", "proposalDeadline"],
            "properties": {
                "title": {"type": "string"},
                "teaser": {"type": "string"},
                "rewardCents": {"type": "integer"},
                "skills": {"type": "array", "items": {"type": "string"}},
                "proposalDeadline": {"type": "string", "format": "date-time"},
                "assignmentDate": {"type": "string", "format": "date-time"},
                "description": {"type": "string"},
                "evaluationCriteria": {"type": "string"},
                "status": {"type": "string", "enum": ["DRAFT", "PUBLISHED"]}
            }
        },
        "EditOpportunityRequest": {
            "type": "object",
            "required": ["title", "proposalDeadline"],
            "properties": {
                "title": {"type": "string"},
                "teaser": {"type": "string"},
                "rewardCents": {"type": "integer"},
                "skills": {"type": "array", "items": {"type": "string"}},
                "proposalDeadline": {"type": "string", "format": "date-time"},
                "assignmentDate": {"type": "string", "format": "date-time"},
                "description": {"type": "string"},
                "evaluationCriteria": {"type": "string"}
            }
        },
        "CreateProposalRequest": {
            "type": "object",
            "required": ["opportunityId", "proponentKind"],
            "properties": {
                "opportunityId": {"type": "string"},
                "proponentKind": {"type": "string", "enum": ["INDIVIDUAL", "ORGANIZATION"]},
                "organizationName": {"type": "string"},
                "proposalText": {"type": "string"},
                "attachments": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ChangeStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string"},
                "note": {"type": "string"}
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
