package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           modelhub API
// @version         1.0
// @description     HTTP API for managing models on a local Ollama-compatible daemon: streamed pull/update relays, model listing, and bulk lifecycle operations.
//
// @contact.name   modelhub maintainers
// @contact.url    https://github.com/your-org/modelhub
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
