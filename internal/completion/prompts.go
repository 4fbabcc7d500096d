package completion

// PromptCompanion is the default system instruction. Keep it short:
// it is sent with every request.
const PromptCompanion = `You are Maitri, a warm and attentive companion.
Reply conversationally in a few sentences.
Be kind and direct. Ask a follow-up question when it helps the user keep talking.
Do not claim to be human.`

// FallbackReply substitutes for a response that carries no text.
const FallbackReply = "Sorry, I could not generate a response."

// MissingCredential is the ConfigError message when no API key is set.
const MissingCredential = "Missing credential."
