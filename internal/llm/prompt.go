package llm

const SystemPrompt = "You are a helpful assistant."
