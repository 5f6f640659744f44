package stages

import "logbook/internal/resilience"

var classificationSchema = resilience.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "input_type": {"type": "string"},
    "selected_domains": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["input_type", "selected_domains"]
}`)

var planSchema = resilience.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "query_type": {"type": "string"},
    "instructions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "strategy": {"type": "string"},
          "params": {"type": "object"}
        },
        "required": ["strategy", "params"]
      }
    }
  },
  "required": ["instructions"]
}`)

var analysisSchema = resilience.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "verdict": {"type": "string"},
    "findings": {"type": "string"},
    "gaps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "description": {"type": "string"},
          "outside_current_expertise": {"type": "boolean"},
          "suspected_domain": {"type": "string"}
        },
        "required": ["type"]
      }
    },
    "domain_expansion_request": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["verdict"]
}`)

var evaluationSchema = resilience.MustCompileSchema(`{
  "type": "object",
  "properties": {
    "passed": {"type": "boolean"},
    "feedback": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["passed"]
}`)
