package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Conflict API",
        "description": "Multi-tab timetable editing with conflict detection and resolution",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {
            "name": "Tabs",
            "description": "Editing sessions"
        },
        {
            "name": "Placements",
            "description": "Grid edits"
        },
        {
            "name": "History",
            "description": "Undo and redo"
        },
        {
            "name": "Conflicts",
            "description": "Detection and suggestions"
        },
        {
            "name": "Reference",
            "description": "Rooms, faculty, batches and courses"
        },
        {
            "name": "Timetables",
            "description": "Persisted timetables"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check against Postgres and Redis",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is down"
                    }
                }
            }
        },
        "/api/v1/reference": {
            "get": {
                "tags": [
                    "Reference"
                ],
                "summary": "Rooms, faculty, batches and courses available for placement",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Reference data unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/reference/refresh": {
            "post": {
                "tags": ["Reference"],
                "summary": "Drop cached reference data and reload it from Postgres",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Reference cache unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/tabs": {
            "get": {
                "tags": [
                    "Tabs"
                ],
                "summary": "List open tabs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Open a blank editing tab",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/CreateTabRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/open": {
            "post": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Load a persisted timetable into a tab",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Storage unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TimetableIdentity"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}": {
            "get": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Get a tab with its grid and conflicts",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Tab not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Close a tab",
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "409": {
                        "description": "Tab has unsaved changes",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "force",
                        "in": "query",
                        "type": "boolean"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/activate": {
            "post": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Make a tab the active one",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/filters": {
            "patch": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Update tab filters",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TabFilters"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/validate": {
            "post": {
                "tags": [
                    "Placements"
                ],
                "summary": "Validate a placement without applying it",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PlacementRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/placements": {
            "post": {
                "tags": [
                    "Placements"
                ],
                "summary": "Place a course session into a cell",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Blocked by critical conflicts",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PlacementRequest"
                        }
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Placements"
                ],
                "summary": "Clear one cell",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Cell is empty",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "day",
                        "in": "query",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "slot",
                        "in": "query",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/moves": {
            "post": {
                "tags": [
                    "Placements"
                ],
                "summary": "Move an assignment to another cell",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Blocked by critical conflicts",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/MoveRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/undo": {
            "post": {
                "tags": [
                    "History"
                ],
                "summary": "Step back in the tab history",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/redo": {
            "post": {
                "tags": [
                    "History"
                ],
                "summary": "Step forward in the tab history",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/conflicts": {
            "get": {
                "tags": [
                    "Conflicts"
                ],
                "summary": "List conflicts in the tab",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/suggestions": {
            "post": {
                "tags": [
                    "Conflicts"
                ],
                "summary": "Suggest fixes for conflicts at a cell or for a pending placement",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SuggestionRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/suggestions/apply": {
            "post": {
                "tags": [
                    "Conflicts"
                ],
                "summary": "Apply a suggestion",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Stale suggestion or blocked result",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ApplySuggestionRequest"
                        }
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/clear": {
            "post": {
                "tags": [
                    "Placements"
                ],
                "summary": "Remove every assignment from the tab",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/tabs/{id}/save": {
            "post": {
                "tags": [
                    "Tabs"
                ],
                "summary": "Persist the tab's timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Filters do not name a timetable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Storage unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ]
            }
        },
        "/api/v1/timetables/{key}/audit": {
            "get": {
                "tags": [
                    "Timetables"
                ],
                "summary": "Recent edits recorded against a timetable",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "key",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ]
            }
        },
        "/api/v1/conflicts/cross-check": {
            "post": {
                "tags": [
                    "Conflicts"
                ],
                "summary": "Check a faculty member or room against other saved timetables",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Cross-timetable data unavailable",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CrossCheckRequest"
                        }
                    }
                ]
            }
        }
    },
    "definitions": {
        "TimetableIdentity": {
            "type": "object",
            "properties": {
                "semester": {
                    "type": "string"
                },
                "branch": {
                    "type": "string"
                },
                "batch": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                }
            }
        },
        "TabFilters": {
            "type": "object",
            "properties": {
                "semester": {
                    "type": "string"
                },
                "branch": {
                    "type": "string"
                },
                "batch": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "room": {
                    "type": "string"
                }
            }
        },
        "CreateTabRequest": {
            "type": "object",
            "properties": {
                "filters": {
                    "$ref": "#/definitions/TabFilters"
                }
            }
        },
        "PlacementRequest": {
            "type": "object",
            "required": [
                "day",
                "slot",
                "courseCode",
                "facultyId",
                "roomId",
                "batchId"
            ],
            "properties": {
                "day": {
                    "type": "string"
                },
                "slot": {
                    "type": "string"
                },
                "courseCode": {
                    "type": "string"
                },
                "facultyId": {
                    "type": "string"
                },
                "roomId": {
                    "type": "string"
                },
                "batchId": {
                    "type": "string"
                },
                "sessionType": {
                    "type": "string",
                    "enum": [
                        "lecture",
                        "tutorial",
                        "practical"
                    ]
                },
                "duration": {
                    "type": "integer"
                }
            }
        },
        "MoveRequest": {
            "type": "object",
            "properties": {
                "fromDay": {
                    "type": "string"
                },
                "fromSlot": {
                    "type": "string"
                },
                "toDay": {
                    "type": "string"
                },
                "toSlot": {
                    "type": "string"
                }
            }
        },
        "SuggestionRequest": {
            "type": "object",
            "properties": {
                "day": {
                    "type": "string"
                },
                "slot": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "placement": {
                    "$ref": "#/definitions/PlacementRequest"
                }
            }
        },
        "ApplySuggestionRequest": {
            "type": "object",
            "properties": {
                "suggestion": {
                    "type": "object"
                }
            }
        },
        "CrossCheckRequest": {
            "type": "object",
            "properties": {
                "facultyId": {
                    "type": "string"
                },
                "roomId": {
                    "type": "string"
                },
                "day": {
                    "type": "string"
                },
                "slot": {
                    "type": "string"
                },
                "excludeKey": {
                    "type": "string"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
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
