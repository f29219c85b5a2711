package aligner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"bireader-backend/internal/models"
)

type threshold struct {
	maxSentenceLength float64
	maxWords          float64
	maxUncommon       float64
}

var (
	beginnerThreshold     = threshold{maxSentenceLength: 15, maxWords: 8, maxUncommon: 2}
	intermediateThreshold = threshold{maxSentenceLength: 25, maxWords: 12, maxUncommon: 4}
)

func (t threshold) admits(m Metrics) bool {
	return m.AvgSentenceLength <= t.maxSentenceLength &&
		m.AvgWordCount <= t.maxWords &&
		m.AvgUncommonChars <= t.maxUncommon
}

// Metrics are the per-sentence averages difficulty is classified from.
type Metrics struct {
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	AvgWordCount      float64 `json:"avg_word_count"`
	AvgUncommonChars  float64 `json:"avg_uncommon_chars"`
}

func Measure(cards []models.SentenceCard) Metrics {
	if len(cards) == 0 {
		return Metrics{}
	}

	var length, words, uncommon int
	for _, c := range cards {
		length += utf8.RuneCountInString(c.Chinese)
		words += len(strings.Fields(c.English))
		uncommon += countUncommon(c.Chinese)
	}

	n := float64(len(cards))
	return Metrics{
		AvgSentenceLength: float64(length) / n,
		AvgWordCount:      float64(words) / n,
		AvgUncommonChars:  float64(uncommon) / n,
	}
}

// ClassifyDifficulty grades cards; an empty sequence is beginner.
func ClassifyDifficulty(cards []models.SentenceCard) models.Difficulty {
	if len(cards) == 0 {
		return models.DifficultyBeginner
	}
	return classify(Measure(cards))
}

func classify(m Metrics) models.Difficulty {
	switch {
	case beginnerThreshold.admits(m):
		return models.DifficultyBeginner
	case intermediateThreshold.admits(m):
		return models.DifficultyIntermediate
	default:
		return models.DifficultyAdvanced
	}
}

// countUncommon counts Han characters outside the common reference set.
func countUncommon(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			continue
		}
		if _, ok := commonChars[r]; !ok {
			n++
		}
	}
	return n
}

var commonChars = func() map[rune]struct{} {
	set := make(map[rune]struct{}, utf8.RuneCountInString(commonCharList))
	for _, r := range commonCharList {
		set[r] = struct{}{}
	}
	return set
}()

// Most frequent characters in modern written Chinese.
const commonCharList = "的一是不了人我在有他这中大来上国个到说们为子和你地出道也时年得就那要下以生会自着去之过家学对可她里后小么心多天而能好都然没日于起还发成事只作当想看文无开手十用主行方又如前所本见经头面公同三已老从动两长知民样现分将外但身些与高意进把法此实回二理美点月明其种声全工己话儿者向情部正名定女问力机给等几很业最间新什打便位因重被走电四第门相次东政海口使教西再平真听世气信北少关并内加化由却代军产入先山五太水万市眼体别处总才场师书比住员九笑性通目华报立马命张活难神数件安表原车白应路期叫死常提感金何更反合放做系计或司利受光王果亲界及今京务制解各任至清物台象记边共风战干接它许八特觉望直服毛林题建南度统色字请交爱让认算论百吃义科怎元社术结六功指思非流每青管夫连远资队跟带花快条院变联言权往展该领传近留红治决周保达办运武半候七必城父强步完革深区即求品士转量空甚众技轻程告江语英基派满式李息写呢识极令黄德收脸钱党倒未持取设始版双历越史商千片容研像找友孩站广改议形委早房音火际则首单据导影失拿网香似斯专石若兵弟谁校读志飞观争究包组造落视济喜离虽坐集编宝谈府拉黑且随格尽剑讲布杀微怕母调局根曾准团段终乐切级克精哪官示冷域吗吧啊歌喝饭茶睡狗猫鱼鸟朋妈爸哥姐妹奶爷晚午昨末春夏秋冬雨雪阳热左右买卖块贵宜鞋衣裤帽桌椅床灯窗"
