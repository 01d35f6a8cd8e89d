package knowledge

import (
	"fmt"

	"github.com/aihub/knowledge-go/internal/errors"
)

// Chunk 表示分块后的文本片段，偏移量以rune为单位
type Chunk struct {
	Index   int
	Start   int
	End     int
	Content string
}

// 分隔符优先级：段落 > 换行 > 句子 > 空格
var chunkSeparators = []string{"\n\n", "\n", "。", ". ", " "}

// Chunker 文本分块器
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器，参数非法时返回INVALID_CONFIG
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("chunk_size must be positive, got %d", chunkSize))
	}
	if chunkOverlap < 0 {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("chunk_overlap must be non-negative, got %d", chunkOverlap))
	}
	if chunkOverlap >= chunkSize {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("chunk_overlap (%d) must be smaller than chunk_size (%d)", chunkOverlap, chunkSize))
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split 将文本切分为有序chunk序列。
// 每个chunk从上一个chunk结束位置回退chunkOverlap个字符处开始，
// 结束位置优先落在自然分隔符上，找不到时按chunkSize硬切。
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.findBreak(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Content: string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
		start = end - c.chunkOverlap
	}

	return chunks
}

// findBreak 在窗口[start, limit)内寻找最靠后的自然分隔符边界，
// 分隔符保留在前一个chunk中。边界必须保证下一个chunk有前进空间，
// 否则退回到硬切位置limit。
func (c *Chunker) findBreak(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range chunkSeparators {
		idx := lastIndexRunes(window, sep)
		if idx < 0 {
			continue
		}
		end := start + idx + len([]rune(sep))
		if end-start > c.chunkOverlap {
			return end
		}
	}
	return limit
}

// lastIndexRunes 返回sep在s中最后一次出现的rune下标，不存在返回-1
func lastIndexRunes(s, sep string) int {
	sepRunes := []rune(sep)
	runes := []rune(s)
	for i := len(runes) - len(sepRunes); i >= 0; i-- {
		match := true
		for j, r := range sepRunes {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
