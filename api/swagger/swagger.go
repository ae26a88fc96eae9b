package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Proctor API",
        "description": "Proctor assignment and swap engine",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Exam catalog"},
        {"name": "Assignments", "description": "Assignment planning"},
        {"name": "Swaps", "description": "Swap request workflow"},
        {"name": "Proctors", "description": "Proctor directory, rosters and constraints"}
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
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "List exams",
                "parameters": [
                    {"name": "term_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Register an exam instance",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Fetch one exam",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/exams/{id}/assignments": {
            "get": {
                "tags": ["Exams"],
                "summary": "List an exam's assignments",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/exams/{id}/plan": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Plan proctor assignments for an exam",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanAssignmentRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/assignments/{id}/history": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Swap trail for one assignment",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/swaps": {
            "get": {
                "tags": ["Swaps"],
                "summary": "List swap requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "mine", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Swaps"],
                "summary": "Open a swap request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSwapRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/swaps/available": {
            "get": {
                "tags": ["Swaps"],
                "summary": "List the open swap board",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/swaps/{id}": {
            "get": {
                "tags": ["Swaps"],
                "summary": "Fetch one swap request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Swaps"],
                "summary": "Cancel an unresolved swap request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/swaps/{id}/claim": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Claim an open swap request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/swaps/{id}/force": {
            "post": {
                "tags": ["Swaps"],
                "summary": "Force-resolve a pending swap request",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors": {
            "get": {
                "tags": ["Proctors"],
                "summary": "List proctors",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors/{id}": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Fetch one proctor",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors/{id}/roster": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Upcoming duty roster",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors/{id}/workload": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Committed workload for a term",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "term_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors/{id}/eligibility": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Preview an eligibility verdict",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "exam_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/proctors/{id}/constraints": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Stored constraints",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Proctors"],
                "summary": "Store a constraint",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/me/roster": {
            "get": {
                "tags": ["Proctors"],
                "summary": "Upcoming duty roster for the caller",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "CreateExamRequest": {
            "type": "object",
            "required": ["course_code", "course_department", "section", "title", "instructor_name", "type", "term_id", "date", "start_time", "end_time", "required_proctor_count"],
            "properties": {
                "course_code": {"type": "string"},
                "course_department": {"type": "string"},
                "section": {"type": "string"},
                "title": {"type": "string"},
                "instructor_name": {"type": "string"},
                "instructor_email": {"type": "string", "format": "email"},
                "type": {"type": "string", "enum": ["MIDTERM", "FINAL", "QUIZ", "MAKEUP"]},
                "term_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "11:00"},
                "required_proctor_count": {"type": "integer"},
                "room": {"type": "string"}
            }
        },
        "PlanAssignmentRequest": {
            "type": "object",
            "properties": {
                "manual_proctor_ids": {"type": "array", "items": {"type": "string"}},
                "auto_count": {"type": "integer"}
            }
        },
        "CreateSwapRequest": {
            "type": "object",
            "required": ["assignment_id", "reason"],
            "properties": {
                "assignment_id": {"type": "string"},
                "target_proctor_id": {"type": "string"},
                "reason": {"type": "string"}
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
