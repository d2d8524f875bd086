package routing

import _ "embed"

//go:embed schema/routing_rules.schema.json
var routingRulesSchema []byte
