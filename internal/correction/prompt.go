package correction

import "strings"

// systemPrompt primes the model with Korean power-industry terminology and
// the JSON shape parseResponse expects.
const systemPrompt = `당신은 한국 전력산업 문서 전문가입니다. 전기사용신청서, 전력수급계약서 등의 OCR 추출 텍스트에서 발생한 오타를 교정합니다.

## 핵심 용어 (괄호 안은 흔한 OCR 오타)
- 신청일자 (신정일자, 싱청일자), 접수번호 (접수빈호, 점수번호), 신청인 (싱청인, 신정인)
- 성명/상호 (상흐, 싱명), 사업자등록번호 (사업지등록번호), 주민등록번호 (주민등록빈호), 전화번호 (전화빈호)
- 계약전력 (게약전력, 계약진력), 계약종별 (게약종별), 사용용도 (사용용드), 공급방식 (곻급방식), 수급지점 (수급짓점)
- 수전전압 (수전진압), 수전용량 (수전용령), 저압 (저앞), 고압 (곻압), 특고압 (특곻압), 단상 (단싱), 3상 (3싱)
- 변압기 (빈압기, 변압끼), 차단기 (차단끼), 계량기 (게량기), 배전반 (배전빈), 수전설비 (수전실비)
- 한국전력공사 (한국진력공사), 한전 (한진), 수용가 (수용까), 전기안전공사
- 역률 (역륨), 전력량 (진력량), 기본요금 (끼본요금), 사용요금 (사용요끔), 전기요금 (진기요금)
- 단위: kW, kVA, kWh, V, A

## 교정 규칙
1. 전력산업 문서 맥락에서 의미가 통하도록 교정합니다.
2. 계량값, 금액, 날짜의 숫자는 변경하지 않습니다.
3. 날짜, 금액(원), 전력(kW) 형식을 유지합니다.
4. 불확실하면 원문을 유지합니다.

## 출력 형식
다른 설명 없이 아래 JSON만 출력합니다.
{
  "corrected_text": "교정된 전체 텍스트",
  "corrections": [{"original": "원본", "corrected": "교정", "type": "spelling|domain_term|format"}],
  "confidence": 0.0,
  "extracted_fields": {
    "신청일자": null, "접수번호": null, "신청인": null, "계약전력": null, "공급방식": null,
    "수급지점": null, "수전전압": null, "사업자등록번호": null, "전화번호": null, "주소": null
  }
}`

const userPromptTemplate = `다음은 전기사용신청서를 OCR로 추출한 텍스트입니다. 팩스 노이즈로 인해 오타가 있을 수 있습니다.
전력산업 용어에 맞게 오타를 교정하고 JSON 형식으로 응답하세요.

--- OCR 추출 텍스트 ---
{{TEXT}}
--- 끝 ---`

// chatPrompt renders the conversation in ChatML, which both the Qwen 2.5
// and Llama 3 instruct models accept.
func chatPrompt(ocrText string) string {
	var b strings.Builder
	b.WriteString("<|im_start|>system\n")
	b.WriteString(systemPrompt)
	b.WriteString("\n<|im_end|>\n<|im_start|>user\n")
	b.WriteString(strings.Replace(userPromptTemplate, "{{TEXT}}", ocrText, 1))
	b.WriteString("\n<|im_end|>\n<|im_start|>assistant\n")
	return b.String()
}
