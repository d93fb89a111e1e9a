// Package kore provides types, interfaces, and helpers for working with the
// Kore API.
//
// # Overview
//
// The kore package defines the domain types (Resource, Allocation, Catalogue)
// and the interfaces for resource-oriented clients (TeamsClient,
// ClustersClient, CredentialsClient, AllocationsClient). A concrete
// implementation is provided by the koreclient package, which wires
// configuration, transport, authentication and the API description document.
//
// # Error translation
//
// Every API call made through a client, typed or catalogue-driven, passes
// through the same decoration (see Decorate and WrapOperations):
//
//   - 404 Not Found resolves to a nil result and a nil error.
//   - 401 Unauthorized invokes DecoratorHooks.Reauthenticate, then returns
//     the error.
//   - 400 Bad Request with a JSON body becomes a *ValidationError carrying
//     the field errors reported by the API.
//   - Anything else is returned unchanged.
//
// Use IsValidation, IsUnauthorized and errors.As to inspect the results.
//
// # Caching
//
// The API description document is cached through the Cache interface. An
// in-memory LRU cache is the default; CacheTypeNATS stores it in a NATS
// JetStream key-value bucket and CacheTypeNone disables caching.
package kore
