// Package koreclient is the entry point for constructing a Kore API client
// that implements the kore.Client interface.
//
// It layers configuration, HTTP transport, authentication and the API
// description document on top of the resource interfaces and types defined in
// the kore package.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/kore-client/pkg/kore"
//	  "github.com/fivetwenty-io/kore-client/pkg/koreclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := koreclient.New(ctx, &kore.Config{
//	    APIEndpoint:   "https://api.kore.example.com",
//	    AccessToken:   "eyJhbGciOi...",
//	    LoadCatalogue: true,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Typed resource groups. A missing resource is nil, not an error.
//	  cluster, err := cli.Clusters("devs").Get(ctx, "dev-gke")
//	  if err != nil { log.Fatal(err) }
//	  _ = cluster
//
//	  // Catalogue-driven operations share the same error translation.
//	  body, err := cli.Operations().Call(ctx, "ListTeams", nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = body
//	}
//
// # Execution modes
//
// kore.ModeServer (the default) attaches a bearer token from Config.TokenSource,
// Config.AccessToken or an OAuth2 client_credentials grant.
//
// kore.ModeProxy acts for a browser session: requests addressed to
// APIEndpoint+"/api/v1alpha1" go to ProxyOrigin+"/apiproxy" instead and carry
// Config.SessionCookie. No bearer token is sent.
//
// # The API description document
//
// DefaultSpecLoader keeps one loader per API origin. The first Load fetches
// APIEndpoint+"/swagger.json"; later calls are served from memory or from the
// configured kore.Cache backend (a NATS JetStream bucket lets several
// processes share it). The document never expires. ResetDefaultSpecLoaders
// exists so tests can start from a clean state.
package koreclient
