package main

// extractionPrompt is the fixed instruction sent with every capture. It pins
// the output schema the normalizer expects; the normalizer still tolerates
// replies that ignore it.
const extractionPrompt = `Analyze this image of food items and provide a detailed list. For each item:
1. Identify the food item.
2. Estimate the quantity (use appropriate units like pieces, grams, or milliliters).
3. Suggest a category (e.g., Fruit, Vegetable, Dairy, Meat, Beverage, Snack, etc.).
4. Estimate an approximate expiration date based on typical shelf life.

Always use your best guess for every field; never answer "unknown" or leave a field out.
Respond with only a JSON array of objects, no surrounding prose and no markdown fences.
Each object has 'name', 'quantity', 'unit', 'category', and 'expirationDate' properties.
Example:
[
  {
    "name": "Apple",
    "quantity": 3,
    "unit": "stk",
    "category": "Frukt og grønt",
    "expirationDate": "2024-10-16"
  },
  {
    "name": "Milk",
    "quantity": 1,
    "unit": "l",
    "category": "Meieriprodukter",
    "expirationDate": "2024-10-13"
  }
]`
