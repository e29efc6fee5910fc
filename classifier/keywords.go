package classifier

// ExcludeKeywords are checked before OncologyKeywords. Several antihypertensives
// end in fragments that collide with the oncology suffix list.
var ExcludeKeywords = []string{
	"암로디핀", "amlodipine",
	"텔미사르탄", "telmisartan",
	"클로르탈리돈",
	"로사르탄", "losartan",
	"발사르탄", "valsartan",
	"올메사르탄",
}

var OncologyKeywords = []string{
	// general terms
	"항암", "백혈병", "leukemia", "림프종", "lymphoma", "골수종", "myeloma",
	"흑색종", "melanoma", "육종", "sarcoma",
	// suffixes
	"mab", "nib", "taxel", "platin", "rubicin", "ciclib",
	// known ingredients
	"퀴자티닙", "quizartinib", "보라시데닙", "vorasidenib",
	"엔잘루타미드", "enzalutamide", "독소루비신", "doxorubicin",
	"시스플라틴", "cisplatin", "트라스투주맙", "trastuzumab",
	"니볼루맙", "nivolumab", "펨브롤리주맙", "pembrolizumab",
	"다사티닙", "dasatinib", "이마티닙", "imatinib",
	"수니티닙", "sunitinib", "베바시주맙", "bevacizumab",
	"세툭시맙", "cetuximab", "리툭시맙", "rituximab",
	"팔보시클립", "palbociclib", "올라파립", "olaparib",
	// cancer names
	"폐암", "유방암", "대장암", "위암", "간암", "췌장암", "전립선암",
	"난소암", "신장암", "방광암", "뇌종양", "교모세포종", "신경교종",
	// therapy and disease state
	"checkpoint", "immunotherapy", "chemotherapy", "targeted therapy",
	"종양", "tumor", "carcinoma", "neoplasm", "metastatic",
	"전이", "재발", "relapsed", "refractory",
}

// OtherCancerType is assigned when no category in CancerTypeTable matches.
const OtherCancerType = "기타"

type CancerCategory struct {
	Name     string
	Keywords []string
}

// CancerTypeTable is walked in order; the first category with a match wins.
var CancerTypeTable = []CancerCategory{
	{Name: "폐암", Keywords: []string{"폐암", "비소세포폐암", "nsclc", "lung cancer", "sclc"}},
	{Name: "유방암", Keywords: []string{"유방암", "breast cancer", "her2"}},
	{Name: "대장암", Keywords: []string{"대장암", "결장암", "직장암", "colorectal"}},
	{Name: "위암", Keywords: []string{"위암", "gastric", "stomach"}},
	{Name: "간암", Keywords: []string{"간암", "간세포암", "hepatocellular", "렌비마"}},
	{Name: "췌장암", Keywords: []string{"췌장암", "pancreatic"}},
	{Name: "전립선암", Keywords: []string{"전립선암", "prostate", "엔잘루타미드"}},
	{Name: "난소암", Keywords: []string{"난소암", "ovarian", "린파자"}},
	{Name: "신장암", Keywords: []string{"신장암", "신세포암", "renal"}},
	{Name: "방광암", Keywords: []string{"방광암", "요로상피암", "bladder"}},
	{Name: "뇌종양", Keywords: []string{"뇌종양", "신경교종", "교모세포종", "glioma", "glioblastoma", "보라시데닙", "보라니고"}},
	{Name: "혈액암", Keywords: []string{"백혈병", "leukemia", "aml", "cml", "all", "림프종", "lymphoma", "골수종", "myeloma", "다라잘렉스", "리툭산", "글리벡", "퀴자티닙", "반플리타"}},
	{Name: "피부암", Keywords: []string{"흑색종", "melanoma", "젤보라프"}},
}

// CancerTypes lists the category names in table order, followed by
// OtherCancerType.
func CancerTypes() []string {
	names := make([]string, 0, len(CancerTypeTable)+1)
	for _, c := range CancerTypeTable {
		names = append(names, c.Name)
	}
	return append(names, OtherCancerType)
}

// SearchKeywords is the curated sweep list queried against the registry.
var SearchKeywords = []string{
	"키트루다", "옵디보", "허쥬마", "타그리소", "렌비마", "린파자", "이브란스",
	"다라잘렉스", "테센트릭", "젤보라프", "임핀지", "엔허투", "아바스틴",
	"허셉틴", "리툭산", "글리벡", "타세바", "이레사", "젤로다", "알림타",
	"택솔", "탁소테레", "시스플라틴", "카보플라틴", "옥살리플라틴",
	"독소루비신", "에피루비신", "젬자르", "빈크리스틴", "빈블라스틴",
	"플루오로우라실", "카페시타빈", "메토트렉세이트", "이리노테칸",
	"보라니고", "반플리타", "퀴자티닙", "보라시데닙", "엔잘루타미드",
	"브렌랩", "벨란타맙", "엘라히어", "미르베툭시맙", "풀베스트란트",
	"오시머티닙", "오티닙", "ADC", "골수종",
}

// DefaultSearchKeywords is queried when a request names neither a search
// term nor the full sweep.
var DefaultSearchKeywords = []string{"키트루다", "옵디보", "허쥬마"}
