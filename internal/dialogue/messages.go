package dialogue

import (
	"fmt"
	"strings"

	"github.com/paulosouza-ec/Avotech/internal/dispatch"
	"github.com/paulosouza-ec/Avotech/internal/models"
)

const (
	MsgWelcome = "👋 Olá! Que bom falar com você 😊. Eu sou um assistente virtual e posso te ajudar a encontrar farmácias próximas com o remédio que você precisa. " +
		"Me envie um áudio com o nome do remédio ou escreva aqui o que deseja.\n\nA qualquer momento você pode dizer *\"cancelar\"* para parar."
	MsgHelp = "ℹ️ Para começar, me envie um áudio com o nome do remédio que você precisa ou digite \"ajuda\" para ver as opções.\n\n" +
		"A qualquer momento você pode dizer *\"cancelar\"* para parar."
	MsgCancelled         = "❌ Operação cancelada. Se precisar de ajuda novamente, é só me chamar!"
	MsgResendDrug        = "🔁 Por favor, envie novamente o nome do remédio que você precisa."
	MsgNoPharmacies      = "🚫 Não encontrei farmácias por perto. Tente outro remédio ou diga \"cancelar\" para recomeçar com outro endereço."
	MsgAddressNotFound   = "📍 Não consegui localizar esse endereço. Por favor, envie outro endereço (com bairro e cidade)."
	MsgSearchUnavailable = "⚠️ Não consegui buscar farmácias agora. Tente novamente em alguns instantes."
	MsgOrderCancelled    = "❌ Pedido cancelado. Você pode entrar em contato manualmente se desejar."
	phoneNotFound        = "Telefone não encontrado"
)

func msgAskAddress(isVoice bool) string {
	if isVoice {
		return "✅ Ótimo! Agora, por favor, me envie um áudio com seu endereço completo (com bairro e cidade)."
	}
	return "✅ Ótimo! Agora, por favor, me envie seu endereço completo (com bairro e cidade)."
}

func msgAskDrugName(isVoice bool) string {
	if isVoice {
		return "📍 Obrigado! Agora me envie um áudio dizendo o nome do remédio que você precisa."
	}
	return "📍 Obrigado! Agora me diga o nome do remédio que você precisa."
}

func msgConfirmDrug(name string, isVoice bool) string {
	how := "Responda *\"SIM\"* para confirmar ou *\"NÃO\"* para corrigir."
	if isVoice {
		how = "Responda por áudio dizendo *\"SIM\"* para confirmar ou *\"NÃO\"* para corrigir."
	}
	return fmt.Sprintf("Você disse: *%s*\n\nEste é o nome correto do remédio que você precisa? %s", name, how)
}

func msgPharmacyList(ps []models.Pharmacy, drug string, isVoice bool) string {
	var b strings.Builder
	b.WriteString("🏥 Farmácias próximas:\n")
	for i, p := range ps {
		fmt.Fprintf(&b, "\n%d. *%s*\n📍 %s", i+1, p.Name, p.Address)
	}
	how := "Me envie o número"
	if isVoice {
		how = "Me envie um áudio dizendo o número"
	}
	fmt.Fprintf(&b, "\n\nDeseja que eu entre em contato com alguma dessas farmácias perguntando pelo remédio \"%s\"? "+
		"%s da farmácia da lista (1 a %d) ou \"cancelar\" para parar.", drug, how, len(ps))
	return b.String()
}

func msgSelectRange(n int, isVoice bool) string {
	if isVoice {
		return fmt.Sprintf("❗ Por favor, envie um áudio dizendo o número entre 1 e %d correspondente à farmácia desejada ou \"cancelar\" para parar.", n)
	}
	return fmt.Sprintf("❗ Por favor, envie um número entre 1 e %d correspondente à farmácia desejada ou \"cancelar\" para parar.", n)
}

func msgPharmacyInfo(p models.Pharmacy, drug string) string {
	phone := p.Phone
	if phone == "" {
		phone = phoneNotFound
	}
	var b strings.Builder
	b.WriteString("✉️ *Informações da Farmácia*\n\n")
	fmt.Fprintf(&b, "🏥 *%s*\n", p.Name)
	fmt.Fprintf(&b, "📍 %s\n", p.Address)
	fmt.Fprintf(&b, "📞 %s\n", phone)
	fmt.Fprintf(&b, "🟢 %s\n\n", models.RenderStatus(p.Status))
	fmt.Fprintf(&b, "💊 *Remédio solicitado:* %s\n\n", drug)
	return b.String()
}

func msgOfferOrder(drug, address string, isVoice bool) string {
	how := "Digite *\"SIM\"* para confirmar ou *\"NÃO\"* para cancelar."
	if isVoice {
		how = "Responda por áudio dizendo *\"SIM\"* para confirmar ou *\"NÃO\"* para cancelar."
	}
	return fmt.Sprintf("Deseja que eu envie uma mensagem para esta farmácia perguntando sobre o remédio *%s* e informando seu endereço *%s*?\n\n%s",
		drug, address, how)
}

func msgSuggestedMessage(drug string) string {
	return fmt.Sprintf("*Mensagem sugerida:*\n\"Olá! Gostaria de saber se vocês têm o remédio %s e qual o valor. Obrigado!\"", drug)
}

func msgConfirmOrderReprompt(isVoice bool) string {
	if isVoice {
		return "❗ Por favor, responda por áudio dizendo *\"SIM\"* para confirmar o envio ou *\"NÃO\"* para cancelar."
	}
	return "❗ Por favor, responda *\"SIM\"* para confirmar o envio ou *\"NÃO\"* para cancelar."
}

func msgOrderSent(pharmacy, drug, address string) string {
	return "✅ Pedido enviado! A farmácia foi contatada com estas informações:\n\n" +
		fmt.Sprintf("🏥 *Farmácia:* %s\n", pharmacy) +
		fmt.Sprintf("💊 *Remédio:* %s\n", drug) +
		fmt.Sprintf("📍 *Endereço:* %s\n", address) +
		fmt.Sprintf("💵 *Pagamento:* %s\n\n", dispatch.PaymentMethod) +
		"Aguarde a resposta deles. Vou te avisar quando responderem!"
}

func msgOrderFailed(reason, phone string) string {
	return fmt.Sprintf("❌ %s\n\nVocê pode tentar entrar em contato manualmente pelo número: %s", reason, phone)
}
