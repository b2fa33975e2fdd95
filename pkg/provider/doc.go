// Package provider defines the LLM provider interface and the adapters
// for communicating with language model APIs (OpenAI and compatible
// vendors, Anthropic, Google Gemini, generic HTTP endpoints).
//
// Providers are addressed by ID strings like "openai:gpt-4o-mini" and
// built through Build, which resolves API keys from the environment.
package provider
