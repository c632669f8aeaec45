// Package docs registers the OpenAPI description of the API with swag.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/communities": {
            "post": {"tags": ["communities"], "summary": "Create a community", "responses": {"201": {"description": "Created"}}}
        },
        "/communities/{communityID}": {
            "get": {"tags": ["communities"], "summary": "Get a community", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/members": {
            "get": {"tags": ["communities"], "summary": "List members", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/permissions": {
            "get": {"tags": ["communities"], "summary": "Resolve effective permissions", "parameters": [{"$ref": "#/parameters/communityID"}, {"name": "user_id", "in": "query", "type": "string"}, {"name": "channel_id", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/roles": {
            "get": {"tags": ["roles"], "summary": "List roles", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["roles"], "summary": "Create a role", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"201": {"description": "Created"}}}
        },
        "/communities/{communityID}/roles/{roleID}/permissions": {
            "put": {"tags": ["roles"], "summary": "Replace a role's permissions", "parameters": [{"$ref": "#/parameters/communityID"}, {"name": "roleID", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/channels": {
            "get": {"tags": ["channels"], "summary": "List channels", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["channels"], "summary": "Create a channel", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"201": {"description": "Created"}}}
        },
        "/communities/{communityID}/channels/{channelID}/overwrites": {
            "put": {"tags": ["channels"], "summary": "Set a permission overwrite", "parameters": [{"$ref": "#/parameters/communityID"}, {"name": "channelID", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/invitations": {
            "get": {"tags": ["invitations"], "summary": "List invitations", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["invitations"], "summary": "Create an invitation", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"201": {"description": "Created"}}}
        },
        "/invitations/{code}/redeem": {
            "post": {"tags": ["invitations"], "summary": "Redeem an invitation", "parameters": [{"name": "code", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Invalid code"}, "410": {"description": "Expired, exhausted or inactive"}}}
        },
        "/communities/{communityID}/tickets": {
            "get": {"tags": ["tickets"], "summary": "List tickets", "parameters": [{"$ref": "#/parameters/communityID"}, {"name": "status", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tickets"], "summary": "Open a ticket", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"201": {"description": "Created"}}}
        },
        "/communities/{communityID}/tickets/{ticketID}/messages": {
            "post": {"tags": ["tickets"], "summary": "Reply to a ticket", "parameters": [{"$ref": "#/parameters/communityID"}, {"$ref": "#/parameters/ticketID"}], "responses": {"201": {"description": "Created"}, "409": {"description": "Ticket closed"}}}
        },
        "/communities/{communityID}/tickets/{ticketID}/assignee": {
            "put": {"tags": ["tickets"], "summary": "Assign a ticket", "parameters": [{"$ref": "#/parameters/communityID"}, {"$ref": "#/parameters/ticketID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/tickets/{ticketID}/status": {
            "put": {"tags": ["tickets"], "summary": "Change a ticket's status", "parameters": [{"$ref": "#/parameters/communityID"}, {"$ref": "#/parameters/ticketID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/moderation/actions": {
            "get": {"tags": ["moderation"], "summary": "Read the audit log", "parameters": [{"$ref": "#/parameters/communityID"}, {"name": "target_user_id", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["moderation"], "summary": "Execute a moderation action", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"201": {"description": "Created"}}}
        },
        "/communities/{communityID}/mentions/resolve": {
            "post": {"tags": ["mentions"], "summary": "Resolve mention recipients", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/mentions/notify": {
            "post": {"tags": ["mentions"], "summary": "Notify mention recipients", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/communities/{communityID}/presence": {
            "get": {"tags": ["presence"], "summary": "List online members", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["presence"], "summary": "Mark the caller offline", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/communities/{communityID}/presence/heartbeat": {
            "post": {"tags": ["presence"], "summary": "Mark the caller online", "parameters": [{"$ref": "#/parameters/communityID"}], "responses": {"204": {"description": "No Content"}}}
        }
    },
    "parameters": {
        "communityID": {"name": "communityID", "in": "path", "required": true, "type": "string"},
        "ticketID": {"name": "ticketID", "in": "path", "required": true, "type": "string"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "TourneyHub API",
	Description:      "Roles, channel permissions, invitations, tickets and moderation for tournament communities.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
