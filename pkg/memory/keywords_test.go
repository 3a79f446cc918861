package memory_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llmpagina/avamem/pkg/memory"
)

var _ = Describe("ExtractKeywords", func() {
	It("ranks terms by frequency", func() {
		keywords := memory.ExtractKeywords("empanadas ricas empanadas calientes empanadas ricas")
		Expect(keywords[0]).To(Equal("empanadas"))
		Expect(keywords[1]).To(Equal("ricas"))
		Expect(keywords).To(ContainElement("calientes"))
	})

	It("drops stop words and short terms", func() {
		keywords := memory.ExtractKeywords("que para con una sal pan")
		Expect(keywords).To(BeEmpty())
	})

	It("lowercases and strips punctuation", func() {
		keywords := memory.ExtractKeywords("¡Empanadas! EMPANADAS, empanadas.")
		Expect(keywords).To(Equal([]string{"empanadas"}))
	})

	It("caps the result at ten terms", func() {
		content := "alpha bravo charlie delta echos foxtrot golfs hotel india juliet kilos lima"
		Expect(len(memory.ExtractKeywords(content))).To(Equal(memory.MaxKeywords))
	})
})

var _ = Describe("DefaultScorer", func() {
	It("scores one point per hundred characters", func() {
		Expect(memory.DefaultScorer(strings.Repeat("a", 50))).To(BeNumerically("~", 0.5, 0.001))
	})

	It("caps at 1.0", func() {
		Expect(memory.DefaultScorer(strings.Repeat("a", 500))).To(Equal(1.0))
	})
})
