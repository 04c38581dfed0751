package main

// General API documentation for swaggo; regenerate ./docs with
// `swag init -g cmd/steerd/docs.go`.
//
// @title           steerd API
// @version         1.0
// @description     HTTP API for steered token-by-token generation on local models.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
