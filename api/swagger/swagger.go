package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Privacy Engine API",
        "description": "Data-subject rights, consent ledger and retention evaluation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Requests", "description": "Data-subject request lifecycle"},
        {"name": "Consent", "description": "Consent ledger"},
        {"name": "Retention", "description": "Retention policies and evaluation"},
        {"name": "Exports", "description": "Fulfilment artifacts"},
        {"name": "Audit", "description": "Compliance audit trail"}
    ],
    "paths": {
        "/privacy/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List data-subject requests",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "rightType", "in": "query", "type": "string"},
                    {"name": "urgent", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a data-subject request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/privacy/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get a data-subject request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/privacy/requests/{id}/transition": {
            "post": {
                "tags": ["Requests"],
                "summary": "Apply a lifecycle transition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequestPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition or stale version"}
                }
            }
        },
        "/privacy/requests/{id}/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Render a fulfilment artifact and return a signed download link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/requests/dashboard": {
            "get": {
                "tags": ["Requests"],
                "summary": "Compliance dashboard aggregates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/consents": {
            "post": {
                "tags": ["Consent"],
                "summary": "Record a consent decision",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordConsentPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/consents/{id}/withdraw": {
            "post": {
                "tags": ["Consent"],
                "summary": "Withdraw a consent",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already withdrawn"}
                }
            }
        },
        "/privacy/consents/latest": {
            "get": {
                "tags": ["Consent"],
                "summary": "Latest consent for a subject and purpose",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "purpose", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/consents/valid": {
            "get": {
                "tags": ["Consent"],
                "summary": "Whether processing is currently authorised",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "purpose", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/consents/history": {
            "get": {
                "tags": ["Consent"],
                "summary": "Full consent history for a subject",
                "parameters": [
                    {"name": "subjectId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/retention/policies": {
            "get": {
                "tags": ["Retention"],
                "summary": "List configured retention policies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Retention"],
                "summary": "Register or replace a retention policy",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRetentionPolicyPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/retention/evaluate": {
            "get": {
                "tags": ["Retention"],
                "summary": "Evaluate one dated item against its effective retention",
                "parameters": [
                    {"name": "category", "in": "query", "required": true, "type": "string"},
                    {"name": "createdAt", "in": "query", "required": true, "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Retention"],
                "summary": "Evaluate a batch of dated items",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EvaluateRetentionBatchPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/privacy/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an artifact via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Artifact bytes"},
                    "401": {"description": "Invalid or expired link"}
                }
            }
        },
        "/privacy/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "Audit trail for one data subject",
                "parameters": [
                    {"name": "subjectId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SubmitRequestPayload": {
            "type": "object",
            "properties": {
                "subjectId": {"type": "string"},
                "rightType": {"type": "string", "enum": ["access", "rectification", "erasure", "restrict_processing", "data_portability", "object"]},
                "description": {"type": "string"},
                "dataCategories": {"type": "array", "items": {"type": "string"}},
                "urgent": {"type": "boolean"}
            },
            "required": ["rightType"]
        },
        "TransitionRequestPayload": {
            "type": "object",
            "properties": {
                "targetStatus": {"type": "string", "enum": ["under_review", "in_progress", "completed", "partially_completed", "rejected"]},
                "notes": {"type": "string"},
                "rejectionReason": {"type": "string"},
                "responsePayload": {"type": "object"}
            },
            "required": ["targetStatus"]
        },
        "RecordConsentPayload": {
            "type": "object",
            "properties": {
                "subjectId": {"type": "string"},
                "purpose": {"type": "string"},
                "lawfulBasis": {"type": "string", "enum": ["consent", "contract", "legal_obligation", "vital_interests", "public_task", "legitimate_interests"]},
                "isGiven": {"type": "boolean"},
                "consentMethod": {"type": "string"},
                "policyVersion": {"type": "string"}
            },
            "required": ["purpose", "lawfulBasis", "consentMethod", "policyVersion"]
        },
        "RegisterRetentionPolicyPayload": {
            "type": "object",
            "properties": {
                "dataType": {"type": "string"},
                "category": {"type": "string"},
                "retentionDays": {"type": "integer"},
                "lawfulBasis": {"type": "string"},
                "description": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["dataType", "category", "retentionDays", "lawfulBasis"]
        },
        "EvaluateRetentionBatchPayload": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "category": {"type": "string"},
                            "createdAt": {"type": "string", "format": "date-time"}
                        }
                    }
                },
                "recordDeletions": {"type": "boolean"}
            },
            "required": ["items"]
        },
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
