package agent

// buildBranchPath composes a hierarchical identifier ("support.sentiment")
// used to label logs and spans of coordinator children. If parent is empty it
// returns child; an empty child returns parent.
func buildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
