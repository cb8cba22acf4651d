package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/minivault/docs.go -o docs`.
//
// @title           MiniVault API
// @version         1.0
// @description     Local LLM generation over REST and WebSocket.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
