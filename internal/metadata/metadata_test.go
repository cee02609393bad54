package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Metadata
	}{
		{
			name: "reports layout",
			path: "/data/reports/Shell/2022/annual_report.pdf",
			want: Metadata{Company: "Shell", Year: 2022},
		},
		{
			name: "relative reports layout",
			path: "reports/ING Group/2021/esg.pdf",
			want: Metadata{Company: "ING Group", Year: 2021},
		},
		{
			name: "year folder that is not a year",
			path: "reports/Shell/latest/report_2020.pdf",
			want: Metadata{Company: "Shell", Year: DefaultYear},
		},
		{
			name: "company folder without year folder",
			path: "reports/Unilever/Unilever_2019_report.pdf",
			want: Metadata{Company: "Unilever", Year: 2019},
		},
		{
			name: "filename fallback",
			path: "/tmp/uploads/Acme_Sustainability_2024.pdf",
			want: Metadata{Company: "Acme", Year: 2024},
		},
		{
			name: "filename without year",
			path: "Acme.pdf",
			want: Metadata{Company: "Acme", Year: DefaultYear},
		},
		{
			name: "reports as file name is not the layout",
			path: "/tmp/reports.pdf",
			want: Metadata{Company: "reports", Year: DefaultYear},
		},
		{
			name: "last reports folder wins",
			path: "/reports/archive/reports/BP/2020/bp.pdf",
			want: Metadata{Company: "BP", Year: 2020},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromPath(tt.path))
		})
	}
}
