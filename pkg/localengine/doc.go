// Package localengine provides an in-process opticks.Engine driven by a JSON
// definition of rule predicates. It is meant for development, tests and
// offline hosts; it performs no traffic bucketing.
//
// Definition format:
//
//	{
//	  "evaluator": "expr",
//	  "features": [
//	    {"key": "new_checkout", "enabled": true, "rule": "plan == \"pro\""}
//	  ],
//	  "experiments": [
//	    {"key": "banner", "audience": "country != \"\"", "variations": [
//	      {"key": "b", "rule": "country == \"es\""},
//	      {"key": "a"}
//	    ]}
//	  ]
//	}
//
// Rules see every attribute as a top-level variable plus "attributes",
// "user_id", "toggle" and "now". The evaluator is one of "expr" (default),
// "cel", "bexpr" or "js" (requires the js_eval build tag).
//
// IsFeatureEnabled is side effect free. Activate dispatches an impression
// through the engine's EventDispatcher and fires NotificationActivate
// listeners when, and only when, it returns a variation.
package localengine
