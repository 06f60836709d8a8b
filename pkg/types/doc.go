// Package types defines the data types shared by the semroute encoders.
//
// The central type is Route: a named group of example utterances. Routes are
// consumed read-only by encoders that learn from a corpus, such as the TF-IDF
// encoder, which fits its vocabulary on the flattened utterances of every
// supplied route.
//
// # Validation
//
// Route provides a Validate() method for input validation:
//
//	route := types.Route{Name: "greeting", Utterances: []string{"hello"}}
//	if err := route.Validate(); err != nil {
//	    // Handle validation error
//	}
//
// # Route Files
//
// Routes can be loaded from YAML documents holding a list of routes:
//
//	# routes.yaml
//	- name: greeting
//	  utterances:
//	    - hello there
//	    - good morning
//
// Use LoadRoutes for files and ParseRoutes for in-memory documents.
package types
