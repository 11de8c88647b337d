package ingest

import (
	"fmt"
	"strings"
)

// ChunkError 单个分块在流水线中的失败记录
type ChunkError struct {
	Ordinal int
	ChunkID string
	Err     error
}

// PartialBatchFailure 批次内部分分块失败
// 文档整体仍可完成，失败的分块按序号报告，成功的分块不受影响
type PartialBatchFailure struct {
	DocumentID string
	Failures   []ChunkError
}

func (e *PartialBatchFailure) Error() string {
	ordinals := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ordinals[i] = fmt.Sprintf("%d", f.Ordinal)
	}
	return fmt.Sprintf("document %s: %d chunk(s) failed (ordinals %s)",
		e.DocumentID, len(e.Failures), strings.Join(ordinals, ","))
}

// FailedOrdinals 返回失败分块的序号列表
func (e *PartialBatchFailure) FailedOrdinals() []int {
	ordinals := make([]int, len(e.Failures))
	for i, f := range e.Failures {
		ordinals[i] = f.Ordinal
	}
	return ordinals
}
