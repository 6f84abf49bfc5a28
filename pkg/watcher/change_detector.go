package watcher

// ChangeAnalysis describes what changed and which rebuild phases need to run
type ChangeAnalysis struct {
	NeedSnapshotReload bool
	NeedRebundle       bool
	NeedStyleRefresh   bool
	ChangedFiles       []string
}

// AnalyzeChanges determines which rebuild phases a change batch requires
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
	}

	switch event.Type {
	case ChangeTypeSnapshot:
		// The resolver rewrote the graph; reload it and rebundle.
		analysis.NeedSnapshotReload = true
		analysis.NeedRebundle = true
		analysis.NeedStyleRefresh = true

	case ChangeTypeSource:
		// Module text changed but the edge structure comes from the
		// snapshot; rebundle from the current graph.
		analysis.NeedRebundle = true

	case ChangeTypeStyle:
		analysis.NeedStyleRefresh = true
	}

	return analysis
}
