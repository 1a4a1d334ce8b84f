package anthropic

// BuildCachedSystemBlocks returns the system prompt as two blocks: the
// instructions, which are stable across calls for a call site and carry a
// cache breakpoint, and the per-request context, which does not. An empty
// context yields a single cached block.
func BuildCachedSystemBlocks(instructions, context string) []SystemBlock {
	blocks := []SystemBlock{{
		Text:         instructions,
		CacheControl: &CacheControl{TTL: "5m"},
	}}
	if context != "" {
		blocks = append(blocks, SystemBlock{Text: context})
	}
	return blocks
}
