package scanning

// receiptScanPrompt is the shared prompt used by all recognizers
const receiptScanPrompt = `You are an expert at reading shop and restaurant receipts. Read every line of the receipt in the image and extract the purchased items, their prices, quantities, discounts and the receipt totals.

Return ONLY valid JSON in this exact format:
{
  "items": [
    {
      "description": "Item name as printed",
      "quantity": 1,
      "unit_price": 0.00,
      "total_amount": 0.00,
      "discount_percent": null,
      "discount_amount": null
    }
  ],
  "service_charge_percent": null,
  "total_check_amount": 0.00,
  "total_discount_percent": null,
  "total_discount_amount": null
}

Rules:
1. If a quantity is printed (for example "2" or "2 pcs"), use it.
2. If no quantity is printed but the unit price and line total are, derive the quantity.
3. For goods sold by weight (for example "0.455 kg"), give the weight as the quantity exactly as printed.
4. Prices are plain numbers without currency symbols.
5. Put per-item discounts in discount_percent or discount_amount of that item.
6. Put a discount on the whole receipt in total_discount_percent or total_discount_amount.
7. Put a service charge or tip percentage in service_charge_percent.
8. Use null for anything that is not on the receipt.
9. Do not include any text before or after the JSON and do not use markdown code blocks.`
