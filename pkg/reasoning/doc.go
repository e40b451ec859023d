// Package reasoning holds the provider-neutral contract between the step
// graph and a reasoning service: agents, messages, requests, responses and the
// parsing of classification labels into closed enums.
//
// Provider adapters (OpenAI, Anthropic) and the deterministic Scripted fake
// translate these types to and from their own wire formats.
package reasoning
