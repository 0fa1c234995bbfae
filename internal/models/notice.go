// internal/models/notice.go
package models

// Notice is one shelter listing as received in a dispatch request or read from
// the notice index. Codes are kept raw; normalization happens when a matching
// candidate is built.
type Notice struct {
	NoticeNo     string `json:"notice_no,omitempty"`
	DesertionNo  string `json:"desertion_no,omitempty"`
	UprCd        string `json:"upr_cd,omitempty"`
	OrgCd        string `json:"org_cd,omitempty"`
	Upkind       string `json:"upkind,omitempty"`
	KindCd       string `json:"kind_cd,omitempty"`
	SexCd        string `json:"sex_cd,omitempty"`
	SizeCategory string `json:"size_category,omitempty"`
}
