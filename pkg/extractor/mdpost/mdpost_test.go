// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package mdpost

import (
	"strings"
	"testing"
)

func TestSteps(t *testing.T) {
	tests := []struct {
		name string
		step Step
		in   string
		want string
	}{
		{
			name: "special characters",
			step: CleanSpecialCharacters,
			in:   "a\u200bb\u00a0c \u201cq\u201d \u2018s\u2019\x07\n\n\n\nd e\u0301",
			want: "ab c \"q\" 's'\n\nd \u00e9",
		},
		{
			name: "relevel shallowest to one",
			step: RelevelHeaders,
			in:   "### A\n#### B\n###### C\n### D",
			want: "# A\n## B\n### C\n# D",
		},
		{
			name: "relevel ignores code",
			step: RelevelHeaders,
			in:   "## A\n```\n# comment\n```",
			want: "# A\n```\n# comment\n```",
		},
		{
			name: "relevel without headings",
			step: RelevelHeaders,
			in:   "plain",
			want: "plain",
		},
		{
			name: "toc dotted leaders",
			step: ConvertTOC,
			in:   "Intro ....... 1\n1.1 Scope ..... 2\n2 Design .... 5\nBody",
			want: "## Table of Contents\n\n- Intro\n  - 1.1 Scope\n- 2 Design\n\nBody",
		},
		{
			name: "toc anchor links",
			step: ConvertTOC,
			in:   "- [One](#one)\n- [Two](#two)\n- [Three](#three)",
			want: "## Table of Contents\n\n- [One](#one)\n- [Two](#two)\n- [Three](#three)\n",
		},
		{
			name: "two toc lines are not a toc",
			step: ConvertTOC,
			in:   "Intro ....... 1\nScope ..... 2",
			want: "Intro ....... 1\nScope ..... 2",
		},
		{
			name: "merge same language",
			step: MergeCodeBlocks,
			in:   "```json\n{\"a\":1}\n```\n\n```json\n{\"b\":2}\n```",
			want: "```json\n{\"a\":1}\n{\"b\":2}\n```",
		},
		{
			name: "keep different languages",
			step: MergeCodeBlocks,
			in:   "```json\n{}\n```\n```http\nGET /\n```",
			want: "```json\n{}\n```\n```http\nGET /\n```",
		},
		{
			name: "keep distant blocks",
			step: MergeCodeBlocks,
			in:   "```\na\n```\n\n\n\n```\nb\n```",
			want: "```\na\n```\n\n\n\n```\nb\n```",
		},
		{
			name: "text table",
			step: ConvertTextTables,
			in:   "Name  Age\nAnn\t30\nBob   41",
			want: "| Name | Age |\n| --- | --- |\n| Ann | 30 |\n| Bob | 41 |",
		},
		{
			name: "single aligned line",
			step: ConvertTextTables,
			in:   "Name  Age\ntext",
			want: "Name  Age\ntext",
		},
		{
			name: "lists",
			step: NormalizeLists,
			in:   "* a\n+ b\n• c\n  1) d\n* * *",
			want: "- a\n- b\n- c\n  1. d\n* * *",
		},
		{
			name: "links",
			step: NormalizeLinks,
			in:   "see https://x.io/a. and <https://y.io> [l](https://z.io)",
			want: "see <https://x.io/a>. and <https://y.io> [l](https://z.io)",
		},
		{
			name: "links in code untouched",
			step: NormalizeLinks,
			in:   "```\nhttps://x.io\n```",
			want: "```\nhttps://x.io\n```",
		},
		{
			name: "escapes",
			step: CleanEscapes,
			in:   "file\\_name\\_v2\n\\(note)\n\\-flag\n1\\. item\nv2024\\.05\n| a \\| b |",
			want: "file_name_v2\n(note)\n-flag\n1\\. item\nv2024.05\n| a \\| b |",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step(tt.in); got != tt.want {
				t.Errorf("got:\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestPipeline(t *testing.T) {
	in := "\n### Title\n\n* one\n* two\n\n```json\n{\"a\": 1}\n```\n\n```json\n{\"b\": 2}\n```\n\n\n\nVisit https://example.com\n"
	got := Pipeline(in)

	for _, want := range []string{
		"# Title",
		"- one\n- two",
		"```json\n{\"a\": 1}\n{\"b\": 2}\n```",
		"Visit <https://example.com>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("pipeline output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank runs not collapsed:\n%q", got)
	}
	if Pipeline(got) != got {
		t.Error("pipeline is not idempotent")
	}
}
