// Package docs registers the OpenAPI document served at /docs.
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
        "/": {
            "get": {
                "description": "Get basic worker information and capabilities",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Worker information",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WorkerInfoResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports healthy when both models loaded, degraded otherwise",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        },
        "/predict": {
            "post": {
                "description": "Geocodes the address, fetches current weather, runs the risk classifier and lesion detector, and returns the annotated image",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["assessment"],
                "summary": "Assess an image at an address",
                "parameters": [
                    {"type": "string", "description": "Farm address", "name": "address", "in": "formData", "required": true},
                    {"type": "file", "description": "Cattle image", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AssessmentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/assess": {
            "post": {
                "description": "Runs the risk classifier on the given features and the lesion detector on the image",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["assessment"],
                "summary": "Assess an image with explicit weather features",
                "parameters": [
                    {"type": "file", "description": "Cattle image", "name": "image", "in": "formData", "required": true},
                    {"type": "number", "description": "Temperature", "name": "tmp", "in": "formData", "required": true},
                    {"type": "number", "description": "Vapor pressure", "name": "vap", "in": "formData", "required": true},
                    {"type": "number", "description": "Precipitation", "name": "pre", "in": "formData", "required": true},
                    {"type": "number", "description": "Cloud cover", "name": "cld", "in": "formData", "required": true},
                    {"type": "string", "description": "Location key used for alert cooldown", "name": "location", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AssessmentResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.AssessmentResponse": {
            "type": "object",
            "properties": {
                "assessment": {"type": "string", "example": "infected|high"},
                "annotated_image": {"type": "string"},
                "risk": {"type": "string", "example": "HIGH"},
                "probability": {"type": "number", "example": 0.87},
                "detections": {"type": "array", "items": {"$ref": "#/definitions/models.Decision"}},
                "banner": {"$ref": "#/definitions/models.Case"},
                "features": {"$ref": "#/definitions/models.WeatherFeatures"},
                "weather": {"$ref": "#/definitions/models.WeatherRecord"},
                "location": {"$ref": "#/definitions/models.Location"},
                "alert_sent": {"type": "boolean"},
                "duration_ms": {"type": "integer", "example": 142},
                "request_id": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Invalid image file"},
                "detail": {"type": "string", "example": "invalid image: empty upload"},
                "request_id": {"type": "string"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "worker_id": {"type": "string", "example": "worker-1"},
                "models": {"type": "object", "additionalProperties": {"$ref": "#/definitions/services.ModelStatus"}},
                "alerts_enabled": {"type": "boolean"},
                "timestamp": {"type": "integer"}
            }
        },
        "handlers.WorkerInfoResponse": {
            "type": "object",
            "properties": {
                "worker_id": {"type": "string", "example": "worker-1"},
                "status": {"type": "string", "example": "running"},
                "version": {"type": "string", "example": "1.0.0"},
                "uptime": {"type": "string", "example": "1h2m3s"},
                "capabilities": {"type": "array", "items": {"type": "string"}}
            }
        },
        "models.Box": {
            "type": "object",
            "properties": {
                "xmin": {"type": "integer"},
                "ymin": {"type": "integer"},
                "xmax": {"type": "integer"},
                "ymax": {"type": "integer"}
            }
        },
        "models.Case": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "example": "infected_high"},
                "label": {"type": "string"},
                "code": {"type": "string", "example": "infected|high"},
                "color": {"type": "string", "example": "red"}
            }
        },
        "models.Decision": {
            "type": "object",
            "properties": {
                "detection": {"$ref": "#/definitions/models.Detection"},
                "case": {"$ref": "#/definitions/models.Case"}
            }
        },
        "models.Detection": {
            "type": "object",
            "properties": {
                "box": {"$ref": "#/definitions/models.Box"},
                "confidence": {"type": "number"},
                "class_name": {"type": "string", "example": "infected"}
            }
        },
        "models.Location": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "lat": {"type": "number"},
                "lng": {"type": "number"}
            }
        },
        "models.WeatherFeatures": {
            "type": "object",
            "properties": {
                "tmp": {"type": "number"},
                "vap": {"type": "number"},
                "pre": {"type": "number"},
                "cld": {"type": "number"}
            }
        },
        "models.WeatherRecord": {
            "type": "object",
            "properties": {
                "temperature": {"type": "number"},
                "humidity": {"type": "number"},
                "precipitation": {"type": "number"},
                "cloud_cover": {"type": "number"},
                "vapor_pressure": {"type": "number"}
            }
        },
        "services.ModelStatus": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "onnx"},
                "active": {"type": "string", "example": "onnx"},
                "ready": {"type": "boolean"},
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "LSD Worker API",
	Description:      "Lumpy skin disease assessment worker: weather risk classification fused with lesion detection on cattle images",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
