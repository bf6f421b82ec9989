package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Apprentice Program API",
        "description": "Enrollment, document verification and license entitlement service for trade apprenticeship programs",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and session management"},
        {"name": "Access", "description": "Enrollment capability resolution"},
        {"name": "Enrollments", "description": "Enrollment lifecycle and approvals"},
        {"name": "Documents", "description": "Document upload, review and verification gates"},
        {"name": "Licenses", "description": "Organization license and feature entitlements"}
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
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access": {
            "get": {
                "tags": ["Access"],
                "summary": "Resolve portal capabilities",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "program", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessDecision"}}
                }
            }
        },
        "/access/{userId}": {
            "get": {
                "tags": ["Access"],
                "summary": "Resolve capabilities for a user (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessDecision"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "program", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Apply to a program",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Enrollment already exists"}
                }
            }
        },
        "/enrollments/current": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Current enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "404": {"description": "No enrollment"}
                }
            }
        },
        "/enrollments/{id}/approve": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Approve a pending enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Approved", "schema": {"$ref": "#/definitions/ApprovalResult"}},
                    "409": {"description": "Not approvable in current status", "schema": {"$ref": "#/definitions/ApprovalResult"}}
                }
            }
        },
        "/enrollments/agreement/sign": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Sign the apprenticeship agreement",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Enrollment"}},
                    "403": {"description": "Enrollment not active"}
                }
            }
        },
        "/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "document_type", "in": "formData", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Document"}},
                    "400": {"description": "Invalid file type or size"}
                }
            },
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents/{id}/verify": {
            "post": {
                "tags": ["Documents"],
                "summary": "Verify a document",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}
                }
            }
        },
        "/documents/gates/exam/{userId}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Gate check for exam eligibility",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/GateDecision"}}
                }
            }
        },
        "/license/validate": {
            "get": {
                "tags": ["Licenses"],
                "summary": "Validate the caller's organization license",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Valid license"},
                    "402": {"description": "License missing, suspended or expired"},
                    "403": {"description": "License revoked"}
                }
            }
        },
        "/license/limits/{resource}": {
            "get": {
                "tags": ["Licenses"],
                "summary": "Check a resource limit",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "resource", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Within limit"},
                    "403": {"description": "Limit exceeded"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ApplyRequest": {
            "type": "object",
            "properties": {
                "program_slug": {"type": "string"},
                "funding_source": {"type": "string"}
            }
        },
        "Enrollment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "program_slug": {"type": "string"},
                "status": {"type": "string"},
                "agreement_signed": {"type": "boolean"},
                "approved_at": {"type": "string"},
                "approved_by": {"type": "string"}
            }
        },
        "ApprovalResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "AccessDecision": {
            "type": "object",
            "properties": {
                "can_access_portal": {"type": "boolean"},
                "can_track_hours": {"type": "boolean"},
                "can_access_curriculum": {"type": "boolean"},
                "can_view_progress": {"type": "boolean"},
                "can_message_advisor": {"type": "boolean"},
                "can_upload_documents": {"type": "boolean"},
                "status": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "owner_type": {"type": "string"},
                "owner_id": {"type": "string"},
                "document_type": {"type": "string"},
                "status": {"type": "string"},
                "verified": {"type": "boolean"},
                "file_name": {"type": "string"}
            }
        },
        "GateDecision": {
            "type": "object",
            "properties": {
                "allowed": {"type": "boolean"},
                "reason": {"type": "string"},
                "unverified_docs": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            }
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
